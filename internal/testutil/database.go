// Package testutil provides shared helpers for tests that need a real database.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(storage.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustCreateUser creates an owner or fails the test.
func (db *TestDB) MustCreateUser(email string) *model.User {
	db.t.Helper()
	user, err := db.Storage.CreateUser(context.Background(), email)
	if err != nil {
		db.t.Fatalf("failed to create user %q: %v", email, err)
	}
	return user
}

// MustCreateCategory creates a category with one rule per keyword or fails the test.
//
// Example:
//
//	db.MustCreateCategory(owner.ID, "Coffee", "starbucks", "tim hortons")
func (db *TestDB) MustCreateCategory(ownerID int64, name string, keywords ...string) *model.Category {
	db.t.Helper()
	ctx := context.Background()

	cat, err := db.Storage.CreateCategory(ctx, ownerID, name)
	if err != nil {
		db.t.Fatalf("failed to seed category %q: %v", name, err)
	}
	for _, keyword := range keywords {
		rule, err := db.Storage.CreateRule(ctx, ownerID, cat.ID, keyword)
		if err != nil {
			db.t.Fatalf("failed to seed rule %q: %v", keyword, err)
		}
		cat.Rules = append(cat.Rules, *rule)
	}
	return cat
}

// MustListTransactions returns all of an owner's transactions or fails the test.
func (db *TestDB) MustListTransactions(ownerID int64) []model.Transaction {
	db.t.Helper()
	txns, err := db.Storage.ListTransactions(context.Background(), ownerID, service.TransactionFilter{})
	if err != nil {
		db.t.Fatalf("failed to list transactions: %v", err)
	}
	return txns
}

// WithTransaction executes the given function within a database transaction.
// The transaction is automatically rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	tx, err := db.Storage.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// WriteFile writes content to name inside a fresh temp directory and returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
