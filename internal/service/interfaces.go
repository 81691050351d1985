// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/tally/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	CategoryID    *int64
	Year          int
	Month         int // 1-12, requires Year
	Limit         int
	Offset        int
	Uncategorized bool
}

// Storage defines the contract for our persistence layer.
// Every method is scoped to a single owner.
type Storage interface {
	// Ingestion operations
	FindTransaction(ctx context.Context, ownerID int64, date time.Time, description string, amount decimal.Decimal) (*model.Transaction, error)
	GetCategoryByName(ctx context.Context, ownerID int64, name string) (*model.Category, error)
	ListRules(ctx context.Context, ownerID int64) ([]model.Rule, error)
	InsertTransactions(ctx context.Context, transactions []model.Transaction) error

	// User operations
	CreateUser(ctx context.Context, email string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	// Category operations
	CreateCategory(ctx context.Context, ownerID int64, name string) (*model.Category, error)
	GetCategoryByID(ctx context.Context, ownerID, id int64) (*model.Category, error)
	GetCategories(ctx context.Context, ownerID int64) ([]model.Category, error)
	RenameCategory(ctx context.Context, ownerID, id int64, name string) error
	DeleteCategory(ctx context.Context, ownerID, id int64) error

	// Rule operations
	CreateRule(ctx context.Context, ownerID, categoryID int64, keyword string) (*model.Rule, error)
	UpdateRule(ctx context.Context, ownerID, ruleID int64, keyword string) error
	DeleteRule(ctx context.Context, ownerID, ruleID int64) error
	GetRulesByCategory(ctx context.Context, ownerID, categoryID int64) ([]model.Rule, error)

	// Transaction operations
	ListTransactions(ctx context.Context, ownerID int64, filter TransactionFilter) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, ownerID int64, id string) (*model.Transaction, error)
	CreateTransaction(ctx context.Context, txn model.Transaction) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, txn model.Transaction) error
	SetTransactionCategory(ctx context.Context, ownerID int64, id string, categoryID *int64) error
	DeleteTransaction(ctx context.Context, ownerID int64, id string) error
	DeleteAllTransactions(ctx context.Context, ownerID int64) (int64, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}
