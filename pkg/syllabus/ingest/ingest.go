// Package ingest holds the core integration algorithm: resolving the entities
// referenced by extracted records and upserting the fact rows that link them.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/malay-max/syllabus-scraper/pkg/syllabus/extract"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus/internalerr"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus/store"
)

// UnknownUniversity is the sentinel name used when a record carries no
// university. A literal, not NULL, so the uniqueness constraint still
// deduplicates such rows.
const UnknownUniversity = "Unknown University"

// Summary reports the outcome of one ingested batch. Skipped counts records
// dropped by the validation gate; they are not failures.
type Summary struct {
	Integrated int
	Skipped    int
}

// Ingest integrates records into st as one atomic batch. For each record it
// resolves university, author and text to stable identifiers (creating them on
// first reference) and upserts the syllabus mapping keyed on
// (university, text, course_code). Records missing an author or a text title
// are skipped whole: no partial rows. The run audit row is written in the same
// transaction, with run.Integrated and run.Skipped filled in.
//
// Either every surviving record commits or, on storage failure, none do.
func Ingest(ctx context.Context, st store.Store, records []extract.Record, run store.Run) (Summary, error) {
	var summary Summary

	err := st.Batch(ctx, func(b store.Batch) error {
		for _, rec := range records {
			uniName := strings.TrimSpace(rec.University)
			if uniName == "" {
				uniName = UnknownUniversity
			}

			// Validation gate: headers and footnotes misclassified as
			// entries arrive with no author or no title. Drop them whole.
			if strings.TrimSpace(rec.Author) == "" || strings.TrimSpace(rec.TextName) == "" {
				summary.Skipped++
				continue
			}

			uniID, ok, err := b.ResolveUniversity(ctx, uniName)
			if err != nil {
				return err
			}
			if !ok {
				summary.Skipped++
				continue
			}

			authorID, ok, err := b.ResolveAuthor(ctx, rec.Author)
			if err != nil {
				return err
			}
			if !ok {
				summary.Skipped++
				continue
			}

			textID, ok, err := b.ResolveText(ctx, rec.TextName, authorID)
			if err != nil {
				return err
			}
			if !ok {
				summary.Skipped++
				continue
			}

			if err := b.UpsertMapping(ctx, store.Mapping{
				UniversityID: uniID,
				TextID:       textID,
				Semester:     rec.Semester,
				CourseCode:   rec.CourseCode,
				Marks:        rec.Marks,
				Credits:      rec.Credits,
			}); err != nil {
				return err
			}
			summary.Integrated++
		}

		run.Integrated = summary.Integrated
		run.Skipped = summary.Skipped
		return b.LogRun(ctx, run)
	})
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", internalerr.ErrStorage, err)
	}
	return summary, nil
}
