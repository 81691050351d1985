package parser

import (
	"context"
	"io"
	"strings"
)

const (
	tdCommonDateLayout   = "01/02/2006"
	tdChequingDateLayout = "2006-01-02"
)

// Generic exports are tried as ISO first, then North American, then day-first.
var tdGenericDateLayouts = []string{"2006-01-02", "01/02/2006", "02/01/2006"}

// TDCommonParser reads TD credit card and account activity exports.
// Rows are either date,description,debit,,credit,balance or
// date,description,debit,credit.
type TDCommonParser struct{}

// Format returns the parser's layout.
func (p *TDCommonParser) Format() Format { return FormatTDCommon }

// Parse reads a TD account activity export.
func (p *TDCommonParser) Parse(ctx context.Context, r io.Reader, accountSource string) (*Report, error) {
	b := newReportBuilder(p.Format(), accountSource)
	err := readRows(ctx, NewReader(r), b, func(b *reportBuilder, line int, record []string) {
		switch {
		case len(record) >= 5 && strings.TrimSpace(record[3]) == "":
			b.emit(line, record[0], []string{tdCommonDateLayout}, record[1], NormalizeAmount(record[2], record[4]))
		case len(record) >= 4:
			b.emit(line, record[0], []string{tdCommonDateLayout}, record[1], NormalizeAmount(record[2], record[3]))
		default:
			b.skip(line, SkipShortRow, "no credit column")
		}
	})
	if err != nil {
		return nil, err
	}
	return b.done(), nil
}

// TDChequingParser reads TD chequing exports laid out as date,description,debit,credit.
type TDChequingParser struct{}

// Format returns the parser's layout.
func (p *TDChequingParser) Format() Format { return FormatTDChequing }

// Parse reads a TD chequing export.
func (p *TDChequingParser) Parse(ctx context.Context, r io.Reader, accountSource string) (*Report, error) {
	b := newReportBuilder(p.Format(), accountSource)
	err := readRows(ctx, NewReader(r), b, func(b *reportBuilder, line int, record []string) {
		b.emit(line, record[0], []string{tdChequingDateLayout}, record[1], NormalizeAmount(record[2], field(record, 3)))
	})
	if err != nil {
		return nil, err
	}
	return b.done(), nil
}

// TDGenericParser is the tolerant fallback layout. It accepts the chequing
// column order, strips stray quotes and tries several date layouts.
type TDGenericParser struct{}

// Format returns the parser's layout.
func (p *TDGenericParser) Format() Format { return FormatTDGeneric }

// Parse reads an export of unknown provenance.
func (p *TDGenericParser) Parse(ctx context.Context, r io.Reader, accountSource string) (*Report, error) {
	b := newReportBuilder(p.Format(), accountSource)
	err := readRows(ctx, NewReader(r), b, func(b *reportBuilder, line int, record []string) {
		fields := make([]string, len(record))
		for i, f := range record {
			fields[i] = unquote(f)
		}
		b.emit(line, fields[0], tdGenericDateLayouts, fields[1], NormalizeAmount(fields[2], field(fields, 3)))
	})
	if err != nil {
		return nil, err
	}
	return b.done(), nil
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
