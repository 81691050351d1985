// Package ingest turns uploaded bank export files into persisted,
// categorized, de-duplicated transactions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/parser"
	"github.com/Veraticus/tally/internal/pattern"
	"github.com/Veraticus/tally/internal/service"
)

// Lookup is the storage surface used while a file is being imported.
type Lookup interface {
	FindTransaction(ctx context.Context, ownerID int64, date time.Time, description string, amount decimal.Decimal) (*model.Transaction, error)
	GetCategoryByName(ctx context.Context, ownerID int64, name string) (*model.Category, error)
	ListRules(ctx context.Context, ownerID int64) ([]model.Rule, error)
	InsertTransactions(ctx context.Context, transactions []model.Transaction) error
}

// Store is the storage collaborator an Importer needs.
type Store interface {
	Lookup
	BeginTx(ctx context.Context) (service.Transaction, error)
}

// Result summarizes the import of one file.
type Result struct {
	SkipReasons   map[parser.SkipReason]int
	File          string
	Format        parser.Format
	AccountSource string
	Errors        []string
	Created       []model.Transaction
	Parsed        int
	Added         int
	Duplicates    int
	Skipped       int
	LowConfidence bool
	DryRun        bool
}

// Importer runs the ingestion pipeline: detect, parse, resolve, de-duplicate, persist.
type Importer struct {
	store    Store
	logger   *slog.Logger
	clock    func() time.Time
	newID    func() string
	progress ProgressReporter
	dryRun   bool
}

// NewImporter creates an importer backed by store.
func NewImporter(store Store, opts ...Option) *Importer {
	imp := defaultImporter(store)
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Ingest imports the file at filePath on behalf of ownerID. originalFilename
// selects the parser. Row problems are counted in the result; only file-open,
// storage and commit failures are returned as errors, and in that case
// nothing from the file is persisted.
func (imp *Importer) Ingest(ctx context.Context, filePath, originalFilename string, ownerID int64) (*Result, error) {
	return imp.ingest(ctx, filePath, originalFilename, ownerID, nil)
}

// ingest treats keys in previewed as already stored. A dry-run batch uses it
// to carry rows that earlier files would have added.
func (imp *Importer) ingest(ctx context.Context, filePath, originalFilename string, ownerID int64, previewed map[model.DuplicateKey]struct{}) (*Result, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("invalid owner %d", ownerID)
	}

	sel := parser.Detect(originalFilename)
	result := &Result{
		File:          originalFilename,
		Format:        sel.Format,
		AccountSource: sel.AccountSource,
		LowConfidence: sel.LowConfidence(),
		SkipReasons:   make(map[parser.SkipReason]int),
		DryRun:        imp.dryRun,
	}
	logger := imp.logger.With("file", originalFilename, "format", sel.Format, "owner_id", ownerID)
	if sel.LowConfidence() {
		logger.Warn("unrecognized file name, guessing generic layout", "account_source", sel.AccountSource)
	}

	report, err := parser.ParseFile(ctx, parser.ForSelection(sel), filePath, sel.AccountSource)
	if errors.Is(err, parser.ErrMissingHeader) {
		logger.Warn("file has no usable header, nothing imported", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", originalFilename, err))
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", originalFilename, err)
	}

	result.Parsed = len(report.Candidates)
	result.Skipped = report.Skipped()
	for reason, n := range report.SkipCounts() {
		result.SkipReasons[reason] = n
	}

	if len(report.Candidates) == 0 {
		logger.Info("no transactions found", "skipped", result.Skipped)
		return result, nil
	}

	created, duplicates, err := imp.persist(ctx, logger, report.Candidates, ownerID, originalFilename, previewed)
	if err != nil {
		return nil, err
	}

	result.Created = created
	result.Added = len(created)
	result.Duplicates = duplicates

	logger.Info("import complete",
		"parsed", result.Parsed,
		"added", result.Added,
		"duplicates", result.Duplicates,
		"skipped", result.Skipped,
		"dry_run", imp.dryRun)
	return result, nil
}

// persist resolves, de-duplicates and inserts candidates inside one storage
// transaction. Any failure rolls the whole file back.
func (imp *Importer) persist(ctx context.Context, logger *slog.Logger, candidates []model.Candidate, ownerID int64, label string, previewed map[model.DuplicateKey]struct{}) (_ []model.Transaction, _ int, err error) {
	tx, err := imp.store.BeginTx(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			logger.Error("rollback failed", "error", rbErr)
		}
	}()

	matcher, err := pattern.NewResolver(tx).MatcherFor(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}

	imp.progress.Start(label, len(candidates))
	defer imp.progress.Finish()

	categories := newCategoryCache(tx, ownerID, logger)
	seen := make(map[model.DuplicateKey]struct{}, len(candidates))
	pending := make([]model.Transaction, 0, len(candidates))
	duplicates := 0

	for i := range candidates {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		imp.progress.Add(1)
		c := candidates[i]

		key := c.DuplicateKey()
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		if _, ok := previewed[key]; ok {
			duplicates++
			continue
		}

		existing, findErr := tx.FindTransaction(ctx, ownerID, c.Date, c.Description, c.Amount)
		if findErr != nil {
			return nil, 0, fmt.Errorf("failed to check for duplicate: %w", findErr)
		}
		if existing != nil {
			logger.Debug("duplicate transaction", "date", key.Date, "description", c.Description, "amount", key.Amount)
			duplicates++
			continue
		}

		var categoryID *int64
		c.CategoryName = ""
		if res := matcher.Match(c.Description); res.Matched {
			cat, catErr := categories.lookup(ctx, res)
			if catErr != nil {
				return nil, 0, catErr
			}
			if cat != nil {
				id := cat.ID
				categoryID = &id
				c.CategoryName = cat.Name
			}
		}

		pending = append(pending, c.ToTransaction(imp.newID(), ownerID, categoryID, imp.clock()))
	}

	if err := tx.InsertTransactions(ctx, pending); err != nil {
		return nil, 0, fmt.Errorf("failed to insert transactions: %w", err)
	}

	if imp.dryRun {
		return pending, duplicates, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	committed = true

	return pending, duplicates, nil
}

// categoryCache memoizes category lookups by name for one import.
type categoryCache struct {
	store   Lookup
	logger  *slog.Logger
	byName  map[string]*model.Category
	ownerID int64
}

func newCategoryCache(store Lookup, ownerID int64, logger *slog.Logger) *categoryCache {
	return &categoryCache{
		store:   store,
		ownerID: ownerID,
		logger:  logger,
		byName:  make(map[string]*model.Category),
	}
}

// lookup returns nil for a rule whose category no longer exists.
func (c *categoryCache) lookup(ctx context.Context, res pattern.Resolution) (*model.Category, error) {
	key := strings.ToLower(res.CategoryName)
	if cat, ok := c.byName[key]; ok {
		return cat, nil
	}

	cat, err := c.store.GetCategoryByName(ctx, c.ownerID, res.CategoryName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category %q: %w", res.CategoryName, err)
	}
	if cat == nil {
		c.logger.Warn("rule points at a missing category, leaving uncategorized",
			"rule_id", res.RuleID, "keyword", res.Keyword, "category", res.CategoryName)
	}
	c.byName[key] = cat
	return cat, nil
}
