package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on open, so this is mostly useful to create a
database up front or to check which version it is on.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "show the schema version without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")

	dbPath := config.ExpandPath(viper.GetString("database.path"))
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	slog.Debug("starting database migration", "database", dbPath, "status_only", status)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		writeLine(out, cli.FormatTitle("Database Migration Status"))
		writeLine(out, fmt.Sprintf("  Database: %s", dbPath))
		writeLine(out, fmt.Sprintf("  Current version: %d", current))
		writeLine(out, fmt.Sprintf("  Latest version: %d", storage.ExpectedSchemaVersion))
		if current < storage.ExpectedSchemaVersion {
			writeLine(out, cli.FormatWarning("Run 'tally migrate' to upgrade."))
		}
		return nil
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if current == storage.ExpectedSchemaVersion {
		writeLine(out, cli.FormatInfo(fmt.Sprintf("Database already at version %d", current)))
		return nil
	}
	writeLine(out, cli.FormatSuccess(fmt.Sprintf("Migrated %s from version %d to %d", dbPath, current, storage.ExpectedSchemaVersion)))
	return nil
}
