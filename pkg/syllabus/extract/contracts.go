package extract

import "context"

// Extractor produces syllabus records from a document. Implementations own
// their transport, retries and polling; a failure to produce usable content
// is reported as an error wrapping internalerr.ErrExtraction.
type Extractor interface {
	Extract(ctx context.Context, documentPath string) ([]Record, error)
}
