package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/tally/internal/model"
)

func TestValidateContext(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{name: "valid context", ctx: context.Background()},
		{name: "nil context", ctx: nil, wantErr: true},
		{name: "canceled context still valid", ctx: canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNilContext)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name    string
		str     string
		wantErr bool
	}{
		{name: "valid string", str: "test"},
		{name: "empty string", str: "", wantErr: true},
		{name: "whitespace only", str: "  \t", wantErr: true},
		{name: "padded string", str: "  x  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, "param")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyString)
				assert.Contains(t, err.Error(), "param")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOwner(t *testing.T) {
	assert.NoError(t, validateOwner(1))
	assert.ErrorIs(t, validateOwner(0), ErrInvalidOwner)
	assert.ErrorIs(t, validateOwner(-3), ErrInvalidOwner)
}

func TestValidateTransactions(t *testing.T) {
	valid := model.Transaction{
		ID:          "abc",
		OwnerID:     1,
		Date:        time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Description: "STARBUCKS",
		Amount:      decimal.RequireFromString("-4.50"),
	}

	tests := []struct {
		name   string
		mutate func(*model.Transaction)
		errMsg string
	}{
		{name: "valid", mutate: func(*model.Transaction) {}},
		{name: "missing id", mutate: func(tx *model.Transaction) { tx.ID = "" }, errMsg: "missing ID"},
		{name: "missing owner", mutate: func(tx *model.Transaction) { tx.OwnerID = 0 }, errMsg: "missing owner"},
		{name: "zero date", mutate: func(tx *model.Transaction) { tx.Date = time.Time{} }, errMsg: "missing date"},
		{name: "blank description", mutate: func(tx *model.Transaction) { tx.Description = " " }, errMsg: "missing description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := valid
			tt.mutate(&txn)
			err := validateTransactions([]model.Transaction{valid, txn})
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidTransaction)
			assert.Contains(t, err.Error(), "index 1")
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.NoError(t, validateTransactions(nil))
}
