// Package syllabus wires extraction and integration into one pipeline: a
// syllabus PDF goes in, normalized rows land in the relational store.
package syllabus

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/malay-max/syllabus-scraper/pkg/syllabus/extract"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus/ingest"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus/internalerr"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus/store"
)

// Pipeline is the main facade: one extractor, one store.
type Pipeline struct {
	store     store.Store
	extractor extract.Extractor
	logger    *zap.Logger
	entropy   *ulid.MonotonicEntropy
}

// Options configures a Pipeline instance.
type Options struct {
	Store     store.Store
	Extractor extract.Extractor
	Logger    *zap.Logger
}

// New creates a Pipeline with the given dependencies.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     opts.Store,
		extractor: opts.Extractor,
		logger:    logger,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// Close cleanly shuts down the pipeline.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// IngestDocument extracts records from one document and integrates them as a
// single atomic batch. On extraction failure nothing is written; on storage
// failure the whole batch rolls back. The returned error carries the failed
// stage via internalerr.ErrExtraction or internalerr.ErrStorage.
func (p *Pipeline) IngestDocument(ctx context.Context, documentPath string) (ingest.Summary, error) {
	started := time.Now()

	records, err := p.extractor.Extract(ctx, documentPath)
	if err != nil {
		if !errors.Is(err, internalerr.ErrExtraction) {
			err = fmt.Errorf("%w: %v", internalerr.ErrExtraction, err)
		}
		return ingest.Summary{}, err
	}
	p.logger.Info("extracted records",
		zap.String("document", documentPath),
		zap.Int("records", len(records)))

	run := store.Run{
		ID:        ulid.MustNew(ulid.Now(), p.entropy).String(),
		Source:    documentPath,
		StartedAt: started,
	}
	summary, err := ingest.Ingest(ctx, p.store, records, run)
	if err != nil {
		return ingest.Summary{}, err
	}

	p.logger.Info("integrated text-mappings",
		zap.String("run", run.ID),
		zap.Int("integrated", summary.Integrated),
		zap.Int("skipped", summary.Skipped))

	if counts, err := p.store.Counts(ctx); err == nil {
		p.logger.Debug("store totals",
			zap.Int64("universities", counts.Universities),
			zap.Int64("authors", counts.Authors),
			zap.Int64("texts", counts.Texts),
			zap.Int64("mappings", counts.Mappings))
	}

	return summary, nil
}
