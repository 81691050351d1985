package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/tally/internal/ingest"
	"github.com/Veraticus/tally/internal/parser"
)

// FormatResult renders the per-file line shown after an import.
func FormatResult(r *ingest.Result) string {
	var b strings.Builder

	switch {
	case len(r.Errors) > 0:
		b.WriteString(FormatError(fmt.Sprintf("%s: no transactions imported", r.File)))
	case r.Parsed == 0:
		b.WriteString(FormatWarning(fmt.Sprintf("%s: no transactions found", r.File)))
	default:
		b.WriteString(FormatSuccess(fmt.Sprintf("%s: %d added, %d duplicates skipped",
			r.File, r.Added, r.Duplicates)))
	}

	details := []string{fmt.Sprintf("%s as %s", r.Format, r.AccountSource)}
	if r.Skipped > 0 {
		details = append(details, fmt.Sprintf("%d rows skipped (%s)", r.Skipped, formatSkipReasons(r.SkipReasons)))
	}
	b.WriteString(" " + SubtleStyle.Render("["+strings.Join(details, "; ")+"]"))

	if r.LowConfidence {
		b.WriteString("\n  " + FormatWarning("file name not recognized, read with the generic layout"))
	}
	for _, msg := range r.Errors {
		b.WriteString("\n  " + ErrorStyle.Render(msg))
	}
	return b.String()
}

// FormatSummary renders the consolidated outcome of a batch.
func FormatSummary(s ingest.Summary, dryRun bool) string {
	lines := []string{
		fmt.Sprintf("Files:      %d", s.FileCount),
		fmt.Sprintf("Added:      %d", s.AddedCount),
		fmt.Sprintf("Duplicates: %d", s.DuplicateCount),
		fmt.Sprintf("Skipped:    %d", s.SkippedCount),
	}
	if len(s.ErrorList) > 0 {
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("Errors:     %d", len(s.ErrorList))))
		for _, msg := range s.ErrorList {
			lines = append(lines, "  "+ErrorStyle.Render(msg))
		}
	}
	if dryRun {
		lines = append(lines, WarningStyle.Render("Dry run: nothing was saved"))
	}
	return RenderBox("Import summary", strings.Join(lines, "\n"))
}

func formatSkipReasons(reasons map[parser.SkipReason]int) string {
	keys := make([]string, 0, len(reasons))
	for reason := range reasons {
		keys = append(keys, string(reason))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, reasons[parser.SkipReason(k)]))
	}
	return strings.Join(parts, ", ")
}
