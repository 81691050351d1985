package ingest

import (
	"context"
	"fmt"

	"github.com/Veraticus/tally/internal/model"
)

// Upload is one file in a multi-file import.
type Upload struct {
	Path     string // where the bytes are
	Filename string // the name the user gave the file; selects the parser
}

// BatchResult collects the outcome of every file in a batch.
type BatchResult struct {
	Results []*Result
	Errors  []string
}

// Summary is the consolidated outcome reported back to the user.
type Summary struct {
	ErrorList      []string
	AddedCount     int
	DuplicateCount int
	SkippedCount   int
	FileCount      int
}

// IngestBatch imports files one after another. Each file commits or rolls
// back on its own, so a failure on one file leaves earlier files in place.
// In a dry run nothing is committed, so rows an earlier file would have added
// are tracked here and counted as duplicates in later files.
func (imp *Importer) IngestBatch(ctx context.Context, uploads []Upload, ownerID int64) *BatchResult {
	batch := &BatchResult{}

	var previewed map[model.DuplicateKey]struct{}
	if imp.dryRun {
		previewed = make(map[model.DuplicateKey]struct{})
	}

	for _, upload := range uploads {
		if err := ctx.Err(); err != nil {
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", upload.Filename, err))
			continue
		}

		result, err := imp.ingest(ctx, upload.Path, upload.Filename, ownerID, previewed)
		if err != nil {
			imp.logger.Error("file import failed", "file", upload.Filename, "error", err)
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s: %v", upload.Filename, err))
			continue
		}
		batch.Results = append(batch.Results, result)

		if previewed != nil {
			for i := range result.Created {
				previewed[result.Created[i].DuplicateKey()] = struct{}{}
			}
		}
	}

	return batch
}

// Summary totals the batch.
func (b *BatchResult) Summary() Summary {
	s := Summary{FileCount: len(b.Results)}
	s.ErrorList = append(s.ErrorList, b.Errors...)
	for _, r := range b.Results {
		s.AddedCount += r.Added
		s.DuplicateCount += r.Duplicates
		s.SkippedCount += r.Skipped
		s.ErrorList = append(s.ErrorList, r.Errors...)
	}
	return s
}
