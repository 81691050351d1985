package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner int64 = 1

func rule(id int64, keyword, category string) Rule {
	return Rule{ID: id, OwnerID: owner, CategoryID: id * 10, CategoryName: category, KeywordPattern: keyword}
}

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name        string
		rules       []Rule
		description string
		wantCat     string
		wantRule    int64
		wantMatched bool
	}{
		{
			name:        "single literal rule",
			rules:       []Rule{rule(1, "starbucks", "Dining Out/Cafe")},
			description: "STARBUCKS #123",
			wantCat:     "Dining Out/Cafe",
			wantRule:    1,
			wantMatched: true,
		},
		{
			name: "longest keyword wins",
			rules: []Rule{
				rule(1, "pizza", "CategoryX"),
				rule(2, "red swan pizza", "CategoryY"),
			},
			description: "red swan pizza place",
			wantCat:     "CategoryY",
			wantRule:    2,
			wantMatched: true,
		},
		{
			name: "shorter keyword still matches when longer does not",
			rules: []Rule{
				rule(1, "pizza", "CategoryX"),
				rule(2, "red swan pizza", "CategoryY"),
			},
			description: "DOMINOS PIZZA",
			wantCat:     "CategoryX",
			wantRule:    1,
			wantMatched: true,
		},
		{
			name: "equal length keeps storage order",
			rules: []Rule{
				rule(7, "abcd", "First"),
				rule(3, "bcde", "Second"),
			},
			description: "abcde",
			wantCat:     "First",
			wantRule:    7,
			wantMatched: true,
		},
		{
			name:        "wildcard rule",
			rules:       []Rule{rule(1, "hp *instant ink", "Subscriptions/Office")},
			description: "HP *INSTANT INK 800-474",
			wantCat:     "Subscriptions/Office",
			wantRule:    1,
			wantMatched: true,
		},
		{
			name:        "no match",
			rules:       []Rule{rule(1, "starbucks", "Dining Out/Cafe")},
			description: "SHELL GAS",
		},
		{
			name:        "empty description",
			rules:       []Rule{rule(1, "a", "Anything")},
			description: "  ",
		},
		{
			name:        "no rules",
			description: "anything",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(owner, tt.rules)
			res := m.Match(tt.description)
			assert.Equal(t, tt.wantMatched, res.Matched)
			assert.Equal(t, tt.wantCat, res.CategoryName)
			assert.Equal(t, tt.wantRule, res.RuleID)
		})
	}
}

func TestMatcher_SkipsInvalidRules(t *testing.T) {
	rules := []Rule{
		rule(1, "*", "Everything"),
		rule(2, "", "Nothing"),
		rule(3, "netflix", "Subscriptions"),
	}

	m := NewMatcher(owner, rules)
	assert.Equal(t, 1, m.Len())
	require.Len(t, m.Invalid(), 2)

	res := m.Match("NETFLIX.COM")
	assert.True(t, res.Matched)
	assert.Equal(t, "Subscriptions", res.CategoryName)

	assert.False(t, m.Match("GROCERY").Matched)
}

func TestMatcher_IgnoresOtherOwnersRules(t *testing.T) {
	foreign := rule(9, "netflix", "Theirs")
	foreign.OwnerID = 2

	m := NewMatcher(owner, []Rule{foreign, rule(1, "net", "Mine")})
	res := m.Match("netflix.com")
	assert.Equal(t, "Mine", res.CategoryName)
	require.Len(t, m.Invalid(), 1)
	assert.Equal(t, int64(9), m.Invalid()[0].Rule.ID)
}

func TestMatcher_DoesNotMutateInput(t *testing.T) {
	rules := []Rule{rule(1, "a", "A"), rule(2, "abc", "ABC")}
	NewMatcher(owner, rules)
	assert.Equal(t, int64(1), rules[0].ID)
	assert.Equal(t, int64(2), rules[1].ID)
}

func TestMatcher_Explain(t *testing.T) {
	m := NewMatcher(owner, []Rule{
		rule(1, "pizza", "Fast Food"),
		rule(2, "red swan pizza", "Dining Out/Cafe"),
		rule(3, "red*place", "Places"),
		rule(4, "sushi", "Japanese"),
	})

	suggestions := m.Explain("Red Swan Pizza Place")
	require.Len(t, suggestions, 3)

	assert.Equal(t, "Dining Out/Cafe", suggestions[0].Category)
	assert.Equal(t, 1, suggestions[0].Rank)
	assert.Equal(t, `contains "red swan pizza"`, suggestions[0].Reason)

	assert.Equal(t, "Places", suggestions[1].Category)
	assert.Equal(t, `contains "red" then "place" in order`, suggestions[1].Reason)

	assert.Equal(t, "Fast Food", suggestions[2].Category)
	assert.Equal(t, 3, suggestions[2].Rank)

	assert.Nil(t, m.Explain(""))
}
