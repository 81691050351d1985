// Package parser turns bank-exported CSV statements into transaction candidates.
package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

// ErrMissingHeader indicates a layout that locates columns by name could not find them.
var ErrMissingHeader = errors.New("missing expected header columns")

// paymentConfirmationPrefix marks zero-amount lines that are still worth keeping.
const paymentConfirmationPrefix = "payment - thank you"

// minFields is the shortest row any layout can use.
const minFields = 3

// Parser reads one statement layout.
type Parser interface {
	// Format returns the layout this parser understands.
	Format() Format
	// Parse reads every row from r. Malformed rows are recorded in the
	// report rather than returned as errors.
	Parse(ctx context.Context, r io.Reader, accountSource string) (*Report, error)
}

// RowStatus is the outcome of a single row.
type RowStatus string

// Row statuses.
const (
	RowOK      RowStatus = "ok"
	RowSkipped RowStatus = "skipped"
)

// SkipReason explains why a row produced no candidate.
type SkipReason string

// Skip reasons.
const (
	SkipShortRow         SkipReason = "short_row"
	SkipZeroAmount       SkipReason = "zero_amount"
	SkipBadDate          SkipReason = "bad_date"
	SkipEmptyDescription SkipReason = "empty_description"
	SkipBadAmount        SkipReason = "bad_amount"
	SkipMalformedCSV     SkipReason = "csv_error"
)

// RowOutcome records what happened to one input row.
type RowOutcome struct {
	Status RowStatus
	Reason SkipReason
	Detail string
	Line   int
}

// Report is the result of parsing one file.
type Report struct {
	Format        Format
	AccountSource string
	Candidates    []model.Candidate
	Outcomes      []RowOutcome
}

// SkipCounts tallies skipped rows by reason.
func (r *Report) SkipCounts() map[SkipReason]int {
	counts := make(map[SkipReason]int)
	for _, o := range r.Outcomes {
		if o.Status == RowSkipped {
			counts[o.Reason]++
		}
	}
	return counts
}

// Skipped returns the number of rows that produced no candidate.
func (r *Report) Skipped() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == RowSkipped {
			n++
		}
	}
	return n
}

// ForSelection returns the parser for a detected layout.
func ForSelection(sel Selection) Parser {
	switch sel.Format {
	case FormatAmex:
		return &AmexParser{}
	case FormatTDChequing:
		return &TDChequingParser{}
	case FormatTDCommon:
		return &TDCommonParser{}
	default:
		return &TDGenericParser{}
	}
}

// ParseFile opens path and parses it with p.
func ParseFile(ctx context.Context, p Parser, path, accountSource string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnreadableFile, err)
	}
	defer func() { _ = f.Close() }()

	return p.Parse(ctx, f, accountSource)
}

// NewReader returns a CSV reader over r that tolerates a leading byte-order mark,
// ragged rows and stray quotes.
func NewReader(r io.Reader) *csv.Reader {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false
	return cr
}

// rowFunc handles one structurally valid record.
type rowFunc func(b *reportBuilder, line int, record []string)

// readRows drives a CSV reader, handing each record to fn.
// Malformed CSV lines are recorded and skipped; I/O failures end the file.
func readRows(ctx context.Context, cr *csv.Reader, b *reportBuilder, fn rowFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			b.skip(parseErr.StartLine, SkipMalformedCSV, parseErr.Err.Error())
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrUnreadableFile, err)
		}

		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}
		if len(record) < minFields {
			b.skip(line, SkipShortRow, fmt.Sprintf("%d fields", len(record)))
			continue
		}
		fn(b, line, record)
	}
}

// reportBuilder accumulates candidates and outcomes for one file.
type reportBuilder struct {
	report *Report
}

func newReportBuilder(format Format, accountSource string) *reportBuilder {
	return &reportBuilder{report: &Report{Format: format, AccountSource: accountSource}}
}

func (b *reportBuilder) skip(line int, reason SkipReason, detail string) {
	b.report.Outcomes = append(b.report.Outcomes, RowOutcome{
		Line:   line,
		Status: RowSkipped,
		Reason: reason,
		Detail: detail,
	})
	slog.Debug("Skipping row",
		"format", b.report.Format,
		"line", line,
		"reason", reason,
		"detail", detail)
}

// emit applies the checks every layout shares and records a candidate when
// the row survives them.
func (b *reportBuilder) emit(line int, rawDate string, layouts []string, description string, amount decimal.Decimal) {
	description = strings.TrimSpace(description)
	if description == "" {
		b.skip(line, SkipEmptyDescription, "")
		return
	}

	if amount.IsZero() && !isPaymentConfirmation(description) {
		b.skip(line, SkipZeroAmount, description)
		return
	}

	date, err := parseDate(rawDate, layouts)
	if err != nil {
		b.skip(line, SkipBadDate, strings.TrimSpace(rawDate))
		return
	}

	b.report.Candidates = append(b.report.Candidates, model.Candidate{
		Date:          date,
		Description:   description,
		Amount:        amount,
		AccountSource: b.report.AccountSource,
	})
	b.report.Outcomes = append(b.report.Outcomes, RowOutcome{Line: line, Status: RowOK})
}

func (b *reportBuilder) done() *Report {
	slog.Debug("Parsed statement",
		"format", b.report.Format,
		"account_source", b.report.AccountSource,
		"candidates", len(b.report.Candidates),
		"skipped", b.report.Skipped())
	return b.report
}

func isPaymentConfirmation(description string) bool {
	return strings.HasPrefix(strings.ToLower(description), paymentConfirmationPrefix)
}

// parseDate tries each layout in order and keeps the first that parses.
func parseDate(raw string, layouts []string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func field(record []string, i int) string {
	if i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
