// Package pattern resolves transaction descriptions to categories using
// owner-scoped keyword rules.
package pattern

import (
	"context"

	"github.com/Veraticus/tally/internal/model"
)

// RuleLister supplies the keyword rules belonging to one owner.
type RuleLister interface {
	// ListRules returns every rule owned by ownerID with its category name joined.
	ListRules(ctx context.Context, ownerID int64) ([]model.Rule, error)
}

// Rule is an alias to the model.Rule type for convenience.
type Rule = model.Rule

// Resolution is the outcome of resolving one description.
type Resolution struct {
	CategoryName string
	Keyword      string
	RuleID       int64
	Matched      bool
}

// Suggestion explains one rule that matches a description.
type Suggestion struct {
	Category string
	Keyword  string
	Reason   string
	RuleID   int64
	Rank     int // 1 is the rule that wins
}
