package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-date layout used for storage and display.
const DateLayout = "2006-01-02"

// Transaction is a persisted, owner-scoped financial transaction.
type Transaction struct {
	Date          time.Time
	CreatedAt     time.Time
	CategoryID    *int64 // nil means uncategorized
	ID            string
	Description   string
	AccountSource string
	CategoryName  string // joined from categories on read
	Amount        decimal.Decimal
	OwnerID       int64
}

// DuplicateKey identifies a statement line independently of where it came from.
// AccountSource is deliberately not part of it.
type DuplicateKey struct {
	Date        string
	Description string
	Amount      string
}

// DuplicateKey returns the (date, description, amount) tuple for the transaction.
func (t *Transaction) DuplicateKey() DuplicateKey {
	return NewDuplicateKey(t.Date, t.Description, t.Amount)
}

// NewDuplicateKey builds a comparable key from its parts.
// Amounts are normalized so 4.5 and 4.50 collide.
func NewDuplicateKey(date time.Time, description string, amount decimal.Decimal) DuplicateKey {
	return DuplicateKey{
		Date:        date.Format(DateLayout),
		Description: description,
		Amount:      amount.String(),
	}
}

// IsExpense reports whether the transaction is an outflow.
func (t *Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}
