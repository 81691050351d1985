package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError("could not open the database at "+dbPath, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("opened database", "path", dbPath)
	return store, nil
}

// currentOwner resolves the --user flag (or import.user from config) to a user.
func currentOwner(ctx context.Context, store service.Storage) (*model.User, error) {
	email := strings.TrimSpace(viper.GetString("import.user"))
	if email == "" {
		return nil, common.NewUserError(
			"no user selected; pass --user <email> or set import.user in the config file",
			common.ErrMissingConfig)
	}

	user, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, common.NewUserError(
			fmt.Sprintf("unknown user %q; create it with 'tally users add %s'", email, email),
			common.ErrNotFound)
	}
	return user, nil
}

// withOwner opens storage, resolves the owner and runs fn.
func withOwner(cmd *cobra.Command, fn func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error) error {
	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	owner, err := currentOwner(ctx, store)
	if err != nil {
		return err
	}
	return fn(ctx, store, owner)
}

// inTransaction runs fn inside one storage transaction, committing on success.
func inTransaction(ctx context.Context, store service.Storage, fn func(tx service.Transaction) error) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// findCategory looks a category up by name and fails with a friendly error.
func findCategory(ctx context.Context, store service.Storage, ownerID int64, name string) (*model.Category, error) {
	cat, err := store.GetCategoryByName(ctx, ownerID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category: %w", err)
	}
	if cat == nil {
		return nil, common.NewUserError(fmt.Sprintf("category %q not found", name), common.ErrNotFound)
	}
	return cat, nil
}

func writeLine(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
