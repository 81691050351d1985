package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

//go:embed defaults.yaml
var defaultRuleSet []byte

// RuleSet is a portable list of categories and their keyword rules.
//
//	categories:
//	  - name: Groceries
//	    keywords: ["valley supermarket", "save on foods"]
type RuleSet struct {
	Categories []CategoryRules `yaml:"categories"`
}

// CategoryRules names one category and the keywords that select it.
type CategoryRules struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// RuleStore is the storage surface needed to apply a rule set.
type RuleStore interface {
	GetCategoryByName(ctx context.Context, ownerID int64, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, ownerID int64, name string) (*model.Category, error)
	CreateRule(ctx context.Context, ownerID, categoryID int64, keyword string) (*model.Rule, error)
}

// ApplyStats counts what ApplyRuleSet changed.
type ApplyStats struct {
	CategoriesCreated int
	RulesCreated      int
	RulesSkipped      int
}

// LoadRuleSet reads a rule set from a YAML file.
func LoadRuleSet(path string) (*RuleSet, error) {
	f, err := os.Open(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open rule set: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseRuleSet(f)
}

// ParseRuleSet decodes and validates a rule set.
func ParseRuleSet(r io.Reader) (*RuleSet, error) {
	var set RuleSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: rule set: %w", common.ErrInvalidConfig, err)
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// DefaultRuleSet returns the built-in starter categories.
func DefaultRuleSet() *RuleSet {
	var set RuleSet
	if err := yaml.Unmarshal(defaultRuleSet, &set); err != nil {
		panic(fmt.Sprintf("embedded rule set is invalid: %v", err))
	}
	return &set
}

// Validate checks that every category is named and every keyword non-empty.
func (s *RuleSet) Validate() error {
	seen := make(map[string]bool, len(s.Categories))
	for i, cat := range s.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return fmt.Errorf("%w: category %d has no name", common.ErrInvalidConfig, i+1)
		}
		if seen[strings.ToLower(name)] {
			return fmt.Errorf("%w: category %q listed twice", common.ErrInvalidConfig, name)
		}
		seen[strings.ToLower(name)] = true

		for _, keyword := range cat.Keywords {
			if strings.TrimSpace(keyword) == "" {
				return fmt.Errorf("%w: category %q has an empty keyword", common.ErrInvalidConfig, name)
			}
		}
	}
	return nil
}

// RuleCount returns the number of keywords across all categories.
func (s *RuleSet) RuleCount() int {
	n := 0
	for _, cat := range s.Categories {
		n += len(cat.Keywords)
	}
	return n
}

// ApplyRuleSet creates the set's categories and rules for ownerID. Existing
// categories are reused and keywords already present are skipped, so
// applying the same set twice changes nothing.
func ApplyRuleSet(ctx context.Context, store RuleStore, ownerID int64, set *RuleSet) (ApplyStats, error) {
	var stats ApplyStats

	for _, entry := range set.Categories {
		name := strings.TrimSpace(entry.Name)
		cat, err := store.GetCategoryByName(ctx, ownerID, name)
		if err != nil {
			return stats, fmt.Errorf("failed to look up category %q: %w", name, err)
		}
		if cat == nil {
			cat, err = store.CreateCategory(ctx, ownerID, name)
			if err != nil {
				return stats, fmt.Errorf("failed to create category %q: %w", name, err)
			}
			stats.CategoriesCreated++
		}

		for _, keyword := range entry.Keywords {
			_, err := store.CreateRule(ctx, ownerID, cat.ID, strings.ToLower(strings.TrimSpace(keyword)))
			if errors.Is(err, common.ErrDuplicateEntry) {
				stats.RulesSkipped++
				continue
			}
			if err != nil {
				return stats, fmt.Errorf("failed to create rule %q: %w", keyword, err)
			}
			stats.RulesCreated++
		}
	}

	slog.Info("applied rule set",
		"owner_id", ownerID,
		"categories_created", stats.CategoriesCreated,
		"rules_created", stats.RulesCreated,
		"rules_skipped", stats.RulesSkipped)
	return stats, nil
}
