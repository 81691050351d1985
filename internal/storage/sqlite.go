package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var (
	_ service.Storage     = (*SQLiteStorage)(nil)
	_ service.Transaction = (*sqliteTransaction)(nil)
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != MemoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Immediate transactions take the write lock up front, so the duplicate
	// check and the insert of one import cannot interleave with another writer.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database location the storage was opened with.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
// The store holds a single connection, so callers must finish the
// transaction before using the store directly again.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// Ingestion operations

// FindTransaction returns the owner's transaction with the given duplicate key, or nil.
func (s *SQLiteStorage) FindTransaction(ctx context.Context, ownerID int64, date time.Time, description string, amount decimal.Decimal) (*model.Transaction, error) {
	return s.findTransaction(ctx, s.db, ownerID, date, description, amount)
}

// GetCategoryByName returns the owner's category with the given name, or nil.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, ownerID int64, name string) (*model.Category, error) {
	return s.getCategoryByName(ctx, s.db, ownerID, name)
}

// ListRules returns every rule the owner has, longest keyword first.
func (s *SQLiteStorage) ListRules(ctx context.Context, ownerID int64) ([]model.Rule, error) {
	return s.listRules(ctx, s.db, ownerID)
}

// InsertTransactions saves transactions atomically.
func (s *SQLiteStorage) InsertTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertTransactions(ctx, tx, transactions); err != nil {
		return err
	}

	return tx.Commit()
}

// User operations

// CreateUser registers a new owner.
func (s *SQLiteStorage) CreateUser(ctx context.Context, email string) (*model.User, error) {
	return s.createUser(ctx, s.db, email)
}

// GetUser returns a user by ID.
func (s *SQLiteStorage) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, s.db, id)
}

// GetUserByEmail returns a user by email, or nil.
func (s *SQLiteStorage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUserByEmail(ctx, s.db, email)
}

// ListUsers returns all users ordered by email.
func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.listUsers(ctx, s.db)
}

// Category operations

// CreateCategory creates a new category for the owner.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, ownerID int64, name string) (*model.Category, error) {
	return s.createCategory(ctx, s.db, ownerID, name)
}

// GetCategoryByID returns the owner's category with the given ID.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, ownerID, id int64) (*model.Category, error) {
	return s.getCategoryByID(ctx, s.db, ownerID, id)
}

// GetCategories returns the owner's categories with their rules.
func (s *SQLiteStorage) GetCategories(ctx context.Context, ownerID int64) ([]model.Category, error) {
	return s.getCategories(ctx, s.db, ownerID)
}

// RenameCategory changes a category's name.
func (s *SQLiteStorage) RenameCategory(ctx context.Context, ownerID, id int64, name string) error {
	return s.renameCategory(ctx, s.db, ownerID, id, name)
}

// DeleteCategory removes a category and its rules.
// Transactions in the category become uncategorized.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	return s.deleteCategory(ctx, s.db, ownerID, id)
}

// Rule operations

// CreateRule adds a keyword rule to a category.
// Leading and trailing whitespace is dropped from keyword.
func (s *SQLiteStorage) CreateRule(ctx context.Context, ownerID, categoryID int64, keyword string) (*model.Rule, error) {
	return s.createRule(ctx, s.db, ownerID, categoryID, keyword)
}

// UpdateRule changes a rule's keyword.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, ownerID, ruleID int64, keyword string) error {
	return s.updateRule(ctx, s.db, ownerID, ruleID, keyword)
}

// DeleteRule removes a rule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, ownerID, ruleID int64) error {
	return s.deleteRule(ctx, s.db, ownerID, ruleID)
}

// GetRulesByCategory returns the rules of one category.
func (s *SQLiteStorage) GetRulesByCategory(ctx context.Context, ownerID, categoryID int64) ([]model.Rule, error) {
	return s.getRulesByCategory(ctx, s.db, ownerID, categoryID)
}

// Transaction operations

// ListTransactions returns the owner's transactions, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, ownerID int64, filter service.TransactionFilter) ([]model.Transaction, error) {
	return s.listTransactions(ctx, s.db, ownerID, filter)
}

// GetTransaction returns one of the owner's transactions by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, ownerID int64, id string) (*model.Transaction, error) {
	return s.getTransaction(ctx, s.db, ownerID, id)
}

// CreateTransaction stores a single hand-entered transaction.
// A collision on (owner, date, description, amount) returns ErrDuplicateEntry.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, txn model.Transaction) (*model.Transaction, error) {
	return s.createTransaction(ctx, s.db, txn)
}

// UpdateTransaction replaces the date, description, amount, account and
// category of an existing transaction.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn model.Transaction) error {
	return s.updateTransaction(ctx, s.db, txn)
}

// SetTransactionCategory assigns a category, or clears it when categoryID is nil.
func (s *SQLiteStorage) SetTransactionCategory(ctx context.Context, ownerID int64, id string, categoryID *int64) error {
	return s.setTransactionCategory(ctx, s.db, ownerID, id, categoryID)
}

// DeleteTransaction removes one transaction.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, ownerID int64, id string) error {
	return s.deleteTransaction(ctx, s.db, ownerID, id)
}

// DeleteAllTransactions removes every transaction of the owner and returns the count.
func (s *SQLiteStorage) DeleteAllTransactions(ctx context.Context, ownerID int64) (int64, error) {
	return s.deleteAllTransactions(ctx, s.db, ownerID)
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) FindTransaction(ctx context.Context, ownerID int64, date time.Time, description string, amount decimal.Decimal) (*model.Transaction, error) {
	return t.storage.findTransaction(ctx, t.tx, ownerID, date, description, amount)
}

func (t *sqliteTransaction) GetCategoryByName(ctx context.Context, ownerID int64, name string) (*model.Category, error) {
	return t.storage.getCategoryByName(ctx, t.tx, ownerID, name)
}

func (t *sqliteTransaction) ListRules(ctx context.Context, ownerID int64) ([]model.Rule, error) {
	return t.storage.listRules(ctx, t.tx, ownerID)
}

func (t *sqliteTransaction) InsertTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.insertTransactions(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) CreateUser(ctx context.Context, email string) (*model.User, error) {
	return t.storage.createUser(ctx, t.tx, email)
}

func (t *sqliteTransaction) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return t.storage.getUser(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return t.storage.getUserByEmail(ctx, t.tx, email)
}

func (t *sqliteTransaction) ListUsers(ctx context.Context) ([]model.User, error) {
	return t.storage.listUsers(ctx, t.tx)
}

func (t *sqliteTransaction) CreateCategory(ctx context.Context, ownerID int64, name string) (*model.Category, error) {
	return t.storage.createCategory(ctx, t.tx, ownerID, name)
}

func (t *sqliteTransaction) GetCategoryByID(ctx context.Context, ownerID, id int64) (*model.Category, error) {
	return t.storage.getCategoryByID(ctx, t.tx, ownerID, id)
}

func (t *sqliteTransaction) GetCategories(ctx context.Context, ownerID int64) ([]model.Category, error) {
	return t.storage.getCategories(ctx, t.tx, ownerID)
}

func (t *sqliteTransaction) RenameCategory(ctx context.Context, ownerID, id int64, name string) error {
	return t.storage.renameCategory(ctx, t.tx, ownerID, id, name)
}

func (t *sqliteTransaction) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	return t.storage.deleteCategory(ctx, t.tx, ownerID, id)
}

func (t *sqliteTransaction) CreateRule(ctx context.Context, ownerID, categoryID int64, keyword string) (*model.Rule, error) {
	return t.storage.createRule(ctx, t.tx, ownerID, categoryID, keyword)
}

func (t *sqliteTransaction) UpdateRule(ctx context.Context, ownerID, ruleID int64, keyword string) error {
	return t.storage.updateRule(ctx, t.tx, ownerID, ruleID, keyword)
}

func (t *sqliteTransaction) DeleteRule(ctx context.Context, ownerID, ruleID int64) error {
	return t.storage.deleteRule(ctx, t.tx, ownerID, ruleID)
}

func (t *sqliteTransaction) GetRulesByCategory(ctx context.Context, ownerID, categoryID int64) ([]model.Rule, error) {
	return t.storage.getRulesByCategory(ctx, t.tx, ownerID, categoryID)
}

func (t *sqliteTransaction) ListTransactions(ctx context.Context, ownerID int64, filter service.TransactionFilter) ([]model.Transaction, error) {
	return t.storage.listTransactions(ctx, t.tx, ownerID, filter)
}

func (t *sqliteTransaction) GetTransaction(ctx context.Context, ownerID int64, id string) (*model.Transaction, error) {
	return t.storage.getTransaction(ctx, t.tx, ownerID, id)
}

func (t *sqliteTransaction) CreateTransaction(ctx context.Context, txn model.Transaction) (*model.Transaction, error) {
	return t.storage.createTransaction(ctx, t.tx, txn)
}

func (t *sqliteTransaction) UpdateTransaction(ctx context.Context, txn model.Transaction) error {
	return t.storage.updateTransaction(ctx, t.tx, txn)
}

func (t *sqliteTransaction) SetTransactionCategory(ctx context.Context, ownerID int64, id string, categoryID *int64) error {
	return t.storage.setTransactionCategory(ctx, t.tx, ownerID, id, categoryID)
}

func (t *sqliteTransaction) DeleteTransaction(ctx context.Context, ownerID int64, id string) error {
	return t.storage.deleteTransaction(ctx, t.tx, ownerID, id)
}

func (t *sqliteTransaction) DeleteAllTransactions(ctx context.Context, ownerID int64) (int64, error) {
	return t.storage.deleteAllTransactions(ctx, t.tx, ownerID)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// checkAffected maps a zero-row mutation to common.ErrNotFound.
func checkAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return nil
}
