package storage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

func filterAll() service.TransactionFilter {
	return service.TransactionFilter{}
}

func TestInsertTransactions(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	user := createTestUser(t, store, "alice@example.com")

	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
		makeTransaction("t1", user.ID, "2025-05-01", "STARBUCKS", "-4.50"),
		makeTransaction("t2", user.ID, "2025-05-02", "PAYROLL", "2500.00"),
	}))

	t.Run("amounts and dates round trip", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, user.ID, filterAll())
		require.NoError(t, err)
		require.Len(t, txns, 2)

		assert.Equal(t, "t2", txns[0].ID)
		assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("2500")))
		assert.Equal(t, "2025-05-02", txns[0].Date.Format(model.DateLayout))
		assert.Equal(t, "TD Chequing", txns[0].AccountSource)
		assert.False(t, txns[0].CreatedAt.IsZero())
		assert.True(t, txns[1].Amount.Equal(decimal.RequireFromString("-4.5")))
	})

	t.Run("same key is rejected", func(t *testing.T) {
		err := store.InsertTransactions(ctx, []model.Transaction{
			makeTransaction("t3", user.ID, "2025-05-03", "TIM HORTONS", "-2.00"),
			makeTransaction("t4", user.ID, "2025-05-01", "STARBUCKS", "-4.5"),
		})
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)

		// The whole batch is rolled back.
		found, err := store.FindTransaction(ctx, user.ID, mustDate("2025-05-03"), "TIM HORTONS", decimal.RequireFromString("-2"))
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("same key for another owner is allowed", func(t *testing.T) {
		bob := createTestUser(t, store, "bob@example.com")
		require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
			makeTransaction("b1", bob.ID, "2025-05-01", "STARBUCKS", "-4.50"),
		}))

		found, err := store.FindTransaction(ctx, user.ID, mustDate("2025-05-01"), "STARBUCKS", decimal.RequireFromString("-4.50"))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "t1", found.ID)
	})

	t.Run("invalid transaction", func(t *testing.T) {
		bad := makeTransaction("", user.ID, "2025-05-09", "X", "1")
		assert.ErrorIs(t, store.InsertTransactions(ctx, []model.Transaction{bad}), ErrInvalidTransaction)
	})

	t.Run("empty batch", func(t *testing.T) {
		assert.NoError(t, store.InsertTransactions(ctx, nil))
	})
}

func TestFindTransaction(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	user := createTestUser(t, store, "alice@example.com")

	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
		makeTransaction("t1", user.ID, "2025-05-01", "STARBUCKS", "-4.50"),
	}))

	tests := []struct {
		name        string
		date        string
		description string
		amount      string
		found       bool
	}{
		{name: "exact", date: "2025-05-01", description: "STARBUCKS", amount: "-4.50", found: true},
		{name: "trailing zeros ignored", date: "2025-05-01", description: "STARBUCKS", amount: "-4.5000", found: true},
		{name: "different date", date: "2025-05-02", description: "STARBUCKS", amount: "-4.50"},
		{name: "different description", date: "2025-05-01", description: "Starbucks", amount: "-4.50"},
		{name: "different amount", date: "2025-05-01", description: "STARBUCKS", amount: "4.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := store.FindTransaction(ctx, user.ID, mustDate(tt.date), tt.description, decimal.RequireFromString(tt.amount))
			require.NoError(t, err)
			if tt.found {
				assert.NotNil(t, found)
			} else {
				assert.Nil(t, found)
			}
		})
	}
}

func TestListTransactions_Filters(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	user := createTestUser(t, store, "alice@example.com")
	cat, err := store.CreateCategory(ctx, user.ID, "Coffee")
	require.NoError(t, err)

	coffee := makeTransaction("t1", user.ID, "2025-05-01", "STARBUCKS", "-4.50")
	coffee.CategoryID = &cat.ID
	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
		coffee,
		makeTransaction("t2", user.ID, "2025-05-31", "PAYROLL", "2500"),
		makeTransaction("t3", user.ID, "2025-06-01", "RENT", "-1200"),
		makeTransaction("t4", user.ID, "2024-12-31", "GIFT", "-50"),
	}))

	ids := func(txns []model.Transaction) []string {
		out := make([]string, 0, len(txns))
		for _, txn := range txns {
			out = append(out, txn.ID)
		}
		return out
	}

	tests := []struct {
		name    string
		filter  service.TransactionFilter
		want    []string
		wantErr error
	}{
		{name: "all newest first", want: []string{"t3", "t2", "t1", "t4"}},
		{name: "year", filter: service.TransactionFilter{Year: 2025}, want: []string{"t3", "t2", "t1"}},
		{name: "month", filter: service.TransactionFilter{Year: 2025, Month: 5}, want: []string{"t2", "t1"}},
		{name: "category", filter: service.TransactionFilter{CategoryID: &cat.ID}, want: []string{"t1"}},
		{name: "uncategorized", filter: service.TransactionFilter{Uncategorized: true, Year: 2025}, want: []string{"t3", "t2"}},
		{name: "limit and offset", filter: service.TransactionFilter{Limit: 2, Offset: 1}, want: []string{"t2", "t1"}},
		{name: "offset only", filter: service.TransactionFilter{Offset: 3}, want: []string{"t4"}},
		{name: "month without year", filter: service.TransactionFilter{Month: 5}, wantErr: ErrInvalidFilter},
		{name: "bad month", filter: service.TransactionFilter{Year: 2025, Month: 13}, wantErr: ErrInvalidFilter},
		{name: "exclusive category filters", filter: service.TransactionFilter{Uncategorized: true, CategoryID: &cat.ID}, wantErr: ErrInvalidFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns, err := store.ListTransactions(ctx, user.ID, tt.filter)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(txns))
		})
	}

	txns, err := store.ListTransactions(ctx, user.ID, service.TransactionFilter{CategoryID: &cat.ID})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Coffee", txns[0].CategoryName)
}

func TestTransactionMutations(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	alice := createTestUser(t, store, "alice@example.com")
	bob := createTestUser(t, store, "bob@example.com")

	cat, err := store.CreateCategory(ctx, alice.ID, "Coffee")
	require.NoError(t, err)
	bobCat, err := store.CreateCategory(ctx, bob.ID, "Coffee")
	require.NoError(t, err)

	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
		makeTransaction("t1", alice.ID, "2025-05-01", "STARBUCKS", "-4.50"),
		makeTransaction("t2", alice.ID, "2025-05-02", "TIMS", "-2.10"),
		makeTransaction("b1", bob.ID, "2025-05-02", "TIMS", "-2.10"),
	}))

	t.Run("set category", func(t *testing.T) {
		require.NoError(t, store.SetTransactionCategory(ctx, alice.ID, "t1", &cat.ID))
		assert.ErrorIs(t, store.SetTransactionCategory(ctx, alice.ID, "t1", &bobCat.ID), common.ErrForbidden)
		assert.ErrorIs(t, store.SetTransactionCategory(ctx, bob.ID, "t1", &bobCat.ID), common.ErrNotFound)

		txns, err := store.ListTransactions(ctx, alice.ID, service.TransactionFilter{CategoryID: &cat.ID})
		require.NoError(t, err)
		require.Len(t, txns, 1)

		require.NoError(t, store.SetTransactionCategory(ctx, alice.ID, "t1", nil))
		txns, err = store.ListTransactions(ctx, alice.ID, service.TransactionFilter{Uncategorized: true})
		require.NoError(t, err)
		assert.Len(t, txns, 2)
	})

	t.Run("delete one", func(t *testing.T) {
		assert.ErrorIs(t, store.DeleteTransaction(ctx, bob.ID, "t2"), common.ErrNotFound)
		require.NoError(t, store.DeleteTransaction(ctx, alice.ID, "t2"))
		assert.ErrorIs(t, store.DeleteTransaction(ctx, alice.ID, "t2"), common.ErrNotFound)
	})

	t.Run("delete all is owner scoped", func(t *testing.T) {
		n, err := store.DeleteAllTransactions(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		txns, err := store.ListTransactions(ctx, bob.ID, filterAll())
		require.NoError(t, err)
		assert.Len(t, txns, 1)
	})
}

func TestCreateTransaction(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	alice := createTestUser(t, store, "alice@example.com")
	bob := createTestUser(t, store, "bob@example.com")
	coffee, err := store.CreateCategory(ctx, alice.ID, "Coffee")
	require.NoError(t, err)
	bobs, err := store.CreateCategory(ctx, bob.ID, "Bob's")
	require.NoError(t, err)

	t.Run("stores and returns the transaction", func(t *testing.T) {
		txn := makeTransaction("m1", alice.ID, "2025-05-01", "CASH COFFEE", "-3.25")
		txn.CategoryID = &coffee.ID

		created, err := store.CreateTransaction(ctx, txn)
		require.NoError(t, err)
		assert.Equal(t, "m1", created.ID)
		assert.Equal(t, "Coffee", created.CategoryName)
		assert.True(t, created.Amount.Equal(decimal.RequireFromString("-3.25")))
		assert.False(t, created.CreatedAt.IsZero())
	})

	t.Run("same key is rejected", func(t *testing.T) {
		_, err := store.CreateTransaction(ctx, makeTransaction("m2", alice.ID, "2025-05-01", "CASH COFFEE", "-3.250"))
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	})

	t.Run("another owner's category is refused", func(t *testing.T) {
		txn := makeTransaction("m3", alice.ID, "2025-05-02", "CASH COFFEE", "-3.25")
		txn.CategoryID = &bobs.ID
		_, err := store.CreateTransaction(ctx, txn)
		assert.ErrorIs(t, err, common.ErrForbidden)
	})

	t.Run("missing description is invalid", func(t *testing.T) {
		_, err := store.CreateTransaction(ctx, makeTransaction("m4", alice.ID, "2025-05-02", " ", "-1"))
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	})
}

func TestGetTransaction(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	alice := createTestUser(t, store, "alice@example.com")
	bob := createTestUser(t, store, "bob@example.com")
	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
		makeTransaction("t1", alice.ID, "2025-05-01", "STARBUCKS", "-4.50"),
	}))

	txn, err := store.GetTransaction(ctx, alice.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, "STARBUCKS", txn.Description)

	_, err = store.GetTransaction(ctx, bob.ID, "t1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetTransaction(ctx, alice.ID, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateTransaction(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)
	alice := createTestUser(t, store, "alice@example.com")
	bob := createTestUser(t, store, "bob@example.com")
	coffee, err := store.CreateCategory(ctx, alice.ID, "Coffee")
	require.NoError(t, err)
	require.NoError(t, store.InsertTransactions(ctx, []model.Transaction{
		makeTransaction("t1", alice.ID, "2025-05-01", "STARBUCKS", "-4.50"),
		makeTransaction("t2", alice.ID, "2025-05-02", "TIM HORTONS", "-2.10"),
	}))

	t.Run("replaces every editable field", func(t *testing.T) {
		edited := makeTransaction("t1", alice.ID, "2025-05-03", "STARBUCKS #9", "-5.75")
		edited.AccountSource = "Amex"
		edited.CategoryID = &coffee.ID
		require.NoError(t, store.UpdateTransaction(ctx, edited))

		got, err := store.GetTransaction(ctx, alice.ID, "t1")
		require.NoError(t, err)
		assert.Equal(t, "2025-05-03", got.Date.Format(model.DateLayout))
		assert.Equal(t, "STARBUCKS #9", got.Description)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("-5.75")))
		assert.Equal(t, "Amex", got.AccountSource)
		assert.Equal(t, "Coffee", got.CategoryName)
	})

	t.Run("colliding with another row is rejected", func(t *testing.T) {
		err := store.UpdateTransaction(ctx, makeTransaction("t1", alice.ID, "2025-05-02", "TIM HORTONS", "-2.1"))
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)

		got, err := store.GetTransaction(ctx, alice.ID, "t1")
		require.NoError(t, err)
		assert.Equal(t, "STARBUCKS #9", got.Description)
	})

	t.Run("clearing the category", func(t *testing.T) {
		require.NoError(t, store.UpdateTransaction(ctx, makeTransaction("t1", alice.ID, "2025-05-03", "STARBUCKS #9", "-5.75")))
		got, err := store.GetTransaction(ctx, alice.ID, "t1")
		require.NoError(t, err)
		assert.Nil(t, got.CategoryID)
	})

	t.Run("another owner's transaction is not found", func(t *testing.T) {
		err := store.UpdateTransaction(ctx, makeTransaction("t2", bob.ID, "2025-05-02", "HACKED", "-1"))
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}
