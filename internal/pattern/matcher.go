package pattern

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"
)

// compiledRule pairs a rule with its compiled pattern.
type compiledRule struct {
	pattern Pattern
	rule    Rule
}

// InvalidRule records a rule that was left out of matching.
type InvalidRule struct {
	Err  error
	Rule Rule
}

// Matcher evaluates descriptions against one owner's rules.
// Rules are tried longest keyword first so specific keywords beat generic
// substrings; equal lengths keep their storage order.
type Matcher struct {
	rules   []compiledRule
	invalid []InvalidRule
	ownerID int64
}

// NewMatcher compiles rules for ownerID. Rules that fail to compile or that
// belong to another owner are logged and left out.
func NewMatcher(ownerID int64, rules []Rule) *Matcher {
	m := &Matcher{ownerID: ownerID}

	ordered := slices.Clone(rules)
	slices.SortStableFunc(ordered, func(a, b Rule) int {
		return cmp.Compare(keywordLength(b), keywordLength(a))
	})

	for _, rule := range ordered {
		if rule.OwnerID != ownerID {
			m.reject(rule, fmt.Errorf("rule owner %d does not match %d", rule.OwnerID, ownerID))
			continue
		}

		p, err := Compile(rule.KeywordPattern)
		if err != nil {
			m.reject(rule, err)
			continue
		}
		m.rules = append(m.rules, compiledRule{rule: rule, pattern: p})
	}

	return m
}

func (m *Matcher) reject(rule Rule, err error) {
	m.invalid = append(m.invalid, InvalidRule{Rule: rule, Err: err})
	slog.Warn("Skipping rule",
		"rule_id", rule.ID,
		"keyword", rule.KeywordPattern,
		"owner_id", m.ownerID,
		"error", err)
}

// Match returns the first rule, in priority order, whose pattern occurs in description.
func (m *Matcher) Match(description string) Resolution {
	if strings.TrimSpace(description) == "" {
		return Resolution{}
	}

	lowered := strings.ToLower(description)
	for _, cr := range m.rules {
		if cr.pattern.Match(lowered) {
			return Resolution{
				CategoryName: cr.rule.CategoryName,
				Keyword:      cr.rule.KeywordPattern,
				RuleID:       cr.rule.ID,
				Matched:      true,
			}
		}
	}
	return Resolution{}
}

// Explain lists every rule that matches description, in the order they would be tried.
func (m *Matcher) Explain(description string) []Suggestion {
	if strings.TrimSpace(description) == "" {
		return nil
	}

	lowered := strings.ToLower(description)
	var suggestions []Suggestion
	for _, cr := range m.rules {
		if !cr.pattern.Match(lowered) {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Category: cr.rule.CategoryName,
			Keyword:  cr.rule.KeywordPattern,
			RuleID:   cr.rule.ID,
			Rank:     len(suggestions) + 1,
			Reason:   describeMatch(cr.pattern),
		})
	}
	return suggestions
}

// Len returns the number of usable rules.
func (m *Matcher) Len() int { return len(m.rules) }

// Invalid returns the rules that were left out.
func (m *Matcher) Invalid() []InvalidRule { return m.invalid }

func describeMatch(p Pattern) string {
	switch p := p.(type) {
	case WildcardPattern:
		return fmt.Sprintf("contains %s in order", strings.Join(quoteAll(p.Segments()), " then "))
	default:
		return fmt.Sprintf("contains %q", strings.ToLower(p.String()))
	}
}

func quoteAll(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, fmt.Sprintf("%q", p))
		}
	}
	return out
}

func keywordLength(r Rule) int {
	return utf8.RuneCountInString(r.KeywordPattern)
}
