package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/tally/internal/common"
)

// Amex exports sometimes open with a spreadsheet table marker before the header.
const amexTableMarker = "table 1"

// Amex dates look like "17 May 2025"; the day may or may not be padded.
var amexDateLayouts = []string{"2 Jan 2006"}

// AmexParser reads American Express CSV exports. Columns are located by
// header name rather than position.
type AmexParser struct{}

// Format returns the parser's layout.
func (p *AmexParser) Format() Format { return FormatAmex }

type amexColumns struct {
	date        int
	description int
	amount      int
}

func (c amexColumns) width() int {
	return max(c.date, c.description, c.amount) + 1
}

// Parse reads an Amex export. A header missing Date, Description or Amount
// fails the whole file with ErrMissingHeader.
func (p *AmexParser) Parse(ctx context.Context, r io.Reader, accountSource string) (*Report, error) {
	cr := NewReader(r)
	b := newReportBuilder(p.Format(), accountSource)

	header, err := readAmexHeader(cr)
	if errors.Is(err, io.EOF) {
		return b.done(), nil
	}
	if err != nil {
		return nil, err
	}

	cols, err := locateAmexColumns(header)
	if err != nil {
		return nil, err
	}

	err = readRows(ctx, cr, b, func(b *reportBuilder, line int, record []string) {
		if len(record) < cols.width() {
			b.skip(line, SkipShortRow, fmt.Sprintf("%d fields", len(record)))
			return
		}

		charge, parseErr := ParseMoney(record[cols.amount])
		if parseErr != nil {
			b.skip(line, SkipBadAmount, strings.TrimSpace(record[cols.amount]))
			return
		}

		// Amex reports charges as positive numbers.
		b.emit(line, record[cols.date], amexDateLayouts, record[cols.description], charge.Neg())
	})
	if err != nil {
		return nil, err
	}
	return b.done(), nil
}

// readAmexHeader returns the header row, stepping over the optional table marker.
func readAmexHeader(cr *csv.Reader) ([]string, error) {
	first, err := cr.Read()
	if err != nil {
		return nil, wrapHeaderErr(err)
	}

	if len(first) > 0 && strings.ToLower(strings.TrimSpace(first[0])) == amexTableMarker {
		header, err := cr.Read()
		if err != nil {
			return nil, wrapHeaderErr(err)
		}
		return header, nil
	}
	return first, nil
}

func wrapHeaderErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return fmt.Errorf("%w: reading header: %w", common.ErrUnreadableFile, err)
}

func locateAmexColumns(header []string) (amexColumns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
		}
		return i
	}

	cols := amexColumns{
		date:        lookup("Date"),
		description: lookup("Description"),
		amount:      lookup("Amount"),
	}
	if len(missing) > 0 {
		return amexColumns{}, fmt.Errorf("%w: %s", ErrMissingHeader, strings.Join(missing, ", "))
	}
	return cols, nil
}
