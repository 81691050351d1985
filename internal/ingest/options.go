package ingest

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ProgressReporter receives per-row progress while a file is processed.
type ProgressReporter interface {
	Start(label string, total int)
	Add(n int)
	Finish()
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger used for per-file and per-row diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(imp *Importer) {
		if logger != nil {
			imp.logger = logger
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(imp *Importer) {
		if clock != nil {
			imp.clock = clock
		}
	}
}

// WithIDGenerator overrides how persisted transaction IDs are minted.
func WithIDGenerator(newID func() string) Option {
	return func(imp *Importer) {
		if newID != nil {
			imp.newID = newID
		}
	}
}

// WithProgress attaches a progress reporter.
func WithProgress(progress ProgressReporter) Option {
	return func(imp *Importer) {
		if progress != nil {
			imp.progress = progress
		}
	}
}

// WithDryRun makes every import roll back after computing its result.
func WithDryRun(dryRun bool) Option {
	return func(imp *Importer) {
		imp.dryRun = dryRun
	}
}

type noopProgress struct{}

func (noopProgress) Start(string, int) {}
func (noopProgress) Add(int)           {}
func (noopProgress) Finish()           {}

func defaultImporter(store Store) *Importer {
	return &Importer{
		store:    store,
		logger:   slog.Default(),
		clock:    time.Now,
		newID:    uuid.NewString,
		progress: noopProgress{},
	}
}
