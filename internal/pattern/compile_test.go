package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name        string
		keyword     string
		description string
		wantType    Pattern
		want        bool
	}{
		{name: "literal substring", keyword: "starbucks", description: "starbucks #123", wantType: LiteralPattern{}, want: true},
		{name: "literal is case-insensitive", keyword: "NETFLIX.COM", description: "netflix.com/bill", wantType: LiteralPattern{}, want: true},
		{name: "literal dot is not a regex", keyword: "netflix.com", description: "netflixxcom", wantType: LiteralPattern{}, want: false},
		{name: "literal with apostrophe", keyword: "mcdonald's", description: "mcdonald's #55", wantType: LiteralPattern{}, want: true},
		{name: "wildcard spans characters", keyword: "hp *instant ink", description: "hp 1234 instant ink", wantType: WildcardPattern{}, want: true},
		{name: "wildcard spans nothing", keyword: "hp *instant ink", description: "hp instant ink", wantType: WildcardPattern{}, want: true},
		{name: "wildcard keeps segment order", keyword: "foo*bar", description: "bar then foo", wantType: WildcardPattern{}, want: false},
		{name: "wildcard escapes metacharacters", keyword: "a+b*(c)", description: "a+b and (c)", wantType: WildcardPattern{}, want: true},
		{name: "multiple wildcards", keyword: "uber*eats*toronto", description: "uber trip eats order toronto on", wantType: WildcardPattern{}, want: true},
		{name: "leading wildcard", keyword: "*pizza", description: "red swan pizza", wantType: WildcardPattern{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.keyword)
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, p)
			assert.Equal(t, tt.keyword, p.String())
			assert.Equal(t, tt.want, p.Match(tt.description))
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("")
	assert.ErrorIs(t, err, ErrEmptyPattern)

	_, err = Compile("   ")
	assert.ErrorIs(t, err, ErrEmptyPattern)

	_, err = Compile("**")
	assert.ErrorIs(t, err, ErrUnboundedPattern)
}

func TestWildcardPattern_Segments(t *testing.T) {
	p, err := Compile("HP *Instant Ink")
	require.NoError(t, err)

	wp, ok := p.(WildcardPattern)
	require.True(t, ok)
	assert.Equal(t, []string{"hp ", "instant ink"}, wp.Segments())
}
