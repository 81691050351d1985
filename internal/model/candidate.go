package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is a parsed statement line that has not been persisted yet.
type Candidate struct {
	Date          time.Time
	Description   string
	AccountSource string
	CategoryName  string // empty means uncategorized
	Amount        decimal.Decimal
}

// DuplicateKey returns the (date, description, amount) tuple for the candidate.
func (c *Candidate) DuplicateKey() DuplicateKey {
	return NewDuplicateKey(c.Date, c.Description, c.Amount)
}

// ToTransaction converts the candidate into a transaction owned by ownerID.
func (c *Candidate) ToTransaction(id string, ownerID int64, categoryID *int64, createdAt time.Time) Transaction {
	return Transaction{
		ID:            id,
		OwnerID:       ownerID,
		Date:          c.Date,
		Description:   c.Description,
		Amount:        c.Amount,
		AccountSource: c.AccountSource,
		CategoryID:    categoryID,
		CategoryName:  c.CategoryName,
		CreatedAt:     createdAt,
	}
}
