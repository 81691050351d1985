package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewDuplicateKey(t *testing.T) {
	date := time.Date(2025, time.May, 17, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		a, b  decimal.Decimal
		equal bool
	}{
		{"trailing zero", decimal.RequireFromString("-4.5"), decimal.RequireFromString("-4.50"), true},
		{"whole number", decimal.RequireFromString("12"), decimal.RequireFromString("12.00"), true},
		{"sign differs", decimal.RequireFromString("4.50"), decimal.RequireFromString("-4.50"), false},
		{"cents differ", decimal.RequireFromString("4.50"), decimal.RequireFromString("4.51"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewDuplicateKey(date, "STARBUCKS", tt.a)
			b := NewDuplicateKey(date, "STARBUCKS", tt.b)
			assert.Equal(t, tt.equal, a == b)
		})
	}
}

func TestDuplicateKey_IgnoresAccountSourceAndTime(t *testing.T) {
	txn := Transaction{
		Date:          time.Date(2025, time.May, 17, 14, 30, 0, 0, time.UTC),
		Description:   "STARBUCKS",
		Amount:        decimal.RequireFromString("-4.50"),
		AccountSource: "TD Account",
	}
	cand := Candidate{
		Date:          time.Date(2025, time.May, 17, 0, 0, 0, 0, time.UTC),
		Description:   "STARBUCKS",
		Amount:        decimal.RequireFromString("-4.5"),
		AccountSource: "Amex Card",
	}

	assert.Equal(t, txn.DuplicateKey(), cand.DuplicateKey())
	assert.Equal(t, "2025-05-17", cand.DuplicateKey().Date)

	cand.Description = "starbucks"
	assert.NotEqual(t, txn.DuplicateKey(), cand.DuplicateKey(), "descriptions compare exactly")
}

func TestCandidate_ToTransaction(t *testing.T) {
	categoryID := int64(7)
	created := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	cand := Candidate{
		Date:          time.Date(2025, time.May, 17, 0, 0, 0, 0, time.UTC),
		Description:   "NETFLIX.COM",
		Amount:        decimal.RequireFromString("-15.99"),
		AccountSource: "Amex Card",
		CategoryName:  "Subscriptions",
	}

	txn := cand.ToTransaction("id-1", 3, &categoryID, created)

	assert.Equal(t, "id-1", txn.ID)
	assert.Equal(t, int64(3), txn.OwnerID)
	assert.Equal(t, cand.Date, txn.Date)
	assert.Equal(t, "NETFLIX.COM", txn.Description)
	assert.True(t, cand.Amount.Equal(txn.Amount))
	assert.Equal(t, "Amex Card", txn.AccountSource)
	assert.Equal(t, &categoryID, txn.CategoryID)
	assert.Equal(t, "Subscriptions", txn.CategoryName)
	assert.Equal(t, created, txn.CreatedAt)
}

func TestTransaction_IsExpense(t *testing.T) {
	assert.True(t, (&Transaction{Amount: decimal.RequireFromString("-0.01")}).IsExpense())
	assert.False(t, (&Transaction{Amount: decimal.RequireFromString("2500")}).IsExpense())
	assert.False(t, (&Transaction{Amount: decimal.Zero}).IsExpense())
}
