package pattern

import (
	"context"
	"fmt"
	"strings"
)

// Resolver assigns categories to descriptions using rules read from storage.
// It never writes to storage.
type Resolver struct {
	rules RuleLister
}

// NewResolver creates a resolver backed by rules.
func NewResolver(rules RuleLister) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve returns the category of the highest-priority rule owned by ownerID
// that matches description. An empty description resolves to nothing
// without touching storage.
func (r *Resolver) Resolve(ctx context.Context, description string, ownerID int64) (Resolution, error) {
	if strings.TrimSpace(description) == "" {
		return Resolution{}, nil
	}

	m, err := r.MatcherFor(ctx, ownerID)
	if err != nil {
		return Resolution{}, err
	}
	return m.Match(description), nil
}

// MatcherFor loads ownerID's rules once so many descriptions can be resolved
// against the same snapshot.
func (r *Resolver) MatcherFor(ctx context.Context, ownerID int64) (*Matcher, error) {
	rules, err := r.rules.ListRules(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules for owner %d: %w", ownerID, err)
	}
	return NewMatcher(ownerID, rules), nil
}
