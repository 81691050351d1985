package pattern

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tally/internal/model"
)

type fakeRuleLister struct {
	err   error
	rules map[int64][]model.Rule
	calls int
}

func (f *fakeRuleLister) ListRules(_ context.Context, ownerID int64) ([]model.Rule, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[ownerID], nil
}

func TestResolver_Resolve(t *testing.T) {
	store := &fakeRuleLister{rules: map[int64][]model.Rule{
		1: {
			{ID: 1, OwnerID: 1, KeywordPattern: "pizza", CategoryName: "CategoryX"},
			{ID: 2, OwnerID: 1, KeywordPattern: "red swan pizza", CategoryName: "CategoryY"},
		},
		2: {
			{ID: 3, OwnerID: 2, KeywordPattern: "red swan pizza", CategoryName: "Owner B Food"},
		},
	}}
	r := NewResolver(store)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "red swan pizza place", 1)
	require.NoError(t, err)
	assert.Equal(t, "CategoryY", res.CategoryName)

	res, err = r.Resolve(ctx, "red swan pizza place", 2)
	require.NoError(t, err)
	assert.Equal(t, "Owner B Food", res.CategoryName)

	res, err = r.Resolve(ctx, "red swan pizza place", 3)
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestResolver_EmptyDescriptionSkipsStorage(t *testing.T) {
	store := &fakeRuleLister{err: errors.New("should not be called")}
	r := NewResolver(store)

	res, err := r.Resolve(context.Background(), "", 1)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Zero(t, store.calls)
}

func TestResolver_StorageError(t *testing.T) {
	boom := errors.New("database is locked")
	r := NewResolver(&fakeRuleLister{err: boom})

	_, err := r.Resolve(context.Background(), "netflix", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
