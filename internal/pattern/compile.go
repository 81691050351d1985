package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// WildcardToken stands for any run of characters inside a keyword.
const WildcardToken = "*"

// Pattern compile errors.
var (
	ErrEmptyPattern     = errors.New("keyword pattern is empty")
	ErrUnboundedPattern = errors.New("keyword pattern contains only wildcards")
)

// Pattern matches a lower-cased transaction description.
// It is either a LiteralPattern or a WildcardPattern.
type Pattern interface {
	// Match reports whether the pattern occurs in description, which must
	// already be lower-cased.
	Match(description string) bool
	// String returns the keyword the pattern was compiled from.
	String() string
}

// LiteralPattern matches a keyword as a plain substring.
type LiteralPattern struct {
	keyword string
	needle  string
}

// Match implements Pattern.
func (p LiteralPattern) Match(description string) bool {
	return strings.Contains(description, p.needle)
}

func (p LiteralPattern) String() string { return p.keyword }

// WildcardPattern matches keyword segments in order with anything between them.
type WildcardPattern struct {
	re       *regexp.Regexp
	keyword  string
	segments []string
}

// Match implements Pattern.
func (p WildcardPattern) Match(description string) bool {
	return p.re.MatchString(description)
}

func (p WildcardPattern) String() string { return p.keyword }

// Segments returns the literal pieces between wildcards.
func (p WildcardPattern) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Compile turns a rule keyword into a Pattern. Keywords without a wildcard
// become literal substring matches; keywords with one or more "*" become
// ordered segment matches. Matching is case-insensitive.
func Compile(keyword string) (Pattern, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, ErrEmptyPattern
	}

	lowered := strings.ToLower(keyword)
	if !strings.Contains(lowered, WildcardToken) {
		return LiteralPattern{keyword: keyword, needle: lowered}, nil
	}

	segments := strings.Split(lowered, WildcardToken)
	quoted := make([]string, len(segments))
	bounded := false
	for i, segment := range segments {
		if segment != "" {
			bounded = true
		}
		quoted[i] = regexp.QuoteMeta(segment)
	}
	if !bounded {
		return nil, fmt.Errorf("%w: %q", ErrUnboundedPattern, keyword)
	}

	re, err := regexp.Compile("(?s)" + strings.Join(quoted, ".*"))
	if err != nil {
		return nil, fmt.Errorf("compiling keyword %q: %w", keyword, err)
	}

	return WildcardPattern{keyword: keyword, segments: segments, re: re}, nil
}
