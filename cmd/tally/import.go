package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tally/internal/cli"
	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/ingest"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/storage"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from bank CSV exports",
		Long: `Import transactions from TD and American Express CSV exports.

The layout is chosen from each file's name: names containing "amex" are read as
American Express exports, names containing "td" as TD exports. Anything else is
read with a tolerant generic layout and flagged in the output.

Lines already stored for the user (same date, description and amount) are
counted as duplicates and skipped, so re-importing a file is safe. Each file
is saved on its own; a failure in one file does not undo the others.

Examples:
  # Import a single file
  tally import --user me@example.com ~/Downloads/td_accountactivity.csv

  # Import every export in a directory
  tally import --user me@example.com ~/Downloads/*.csv

  # Preview without saving
  tally import --user me@example.com --dry-run amex-june.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	cmd.Flags().Bool("no-progress", false, "Don't draw progress bars")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}

	return withOwner(cmd, func(ctx context.Context, store *storage.SQLiteStorage, owner *model.User) error {
		out := cmd.OutOrStdout()

		slog.Info("Importing files",
			"file_count", len(files),
			"owner", owner.Email,
			"dry_run", dryRun)

		opts := []ingest.Option{ingest.WithDryRun(dryRun)}
		if !noProgress {
			opts = append(opts, ingest.WithProgress(cli.NewProgressBar(cmd.ErrOrStderr())))
		}
		importer := ingest.NewImporter(store, opts...)

		uploads := make([]ingest.Upload, 0, len(files))
		for _, f := range files {
			uploads = append(uploads, ingest.Upload{Path: f, Filename: filepath.Base(f)})
		}

		batch := importer.IngestBatch(ctx, uploads, owner.ID)
		for _, result := range batch.Results {
			writeLine(out, cli.FormatResult(result))
		}
		for _, msg := range batch.Errors {
			writeLine(out, cli.FormatError(msg))
		}

		writeLine(out)
		writeLine(out, cli.FormatSummary(batch.Summary(), dryRun))

		if len(batch.Results) == 0 && len(batch.Errors) > 0 {
			return common.NewUserError("no files could be imported", common.ErrUnreadableFile)
		}
		return ctx.Err()
	})
}

// expandFiles expands glob patterns, keeping literal paths that exist.
func expandFiles(args []string) ([]string, error) {
	var files []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, statErr := os.Stat(pattern); statErr == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		return nil, common.NewUserError("no files found to import", common.ErrInvalidInput)
	}
	return files, nil
}
