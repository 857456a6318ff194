package store

import (
	"context"
	"time"
)

// Store is the persistence interface for the syllabus schema.
//
// Batch runs fn against a single transaction: every resolve and upsert issued
// through the Batch either commits as one unit when fn returns nil, or rolls
// back entirely when fn returns an error. One ingested document maps to one
// Batch.
type Store interface {
	Close() error

	Batch(ctx context.Context, fn func(Batch) error) error

	// Counts reports row totals per table, for post-run observability.
	Counts(ctx context.Context) (Counts, error)
}

// Batch exposes the write operations available inside one transaction.
//
// The Resolve* methods implement get-or-create: names and titles are trimmed
// before lookup, an exact match returns the existing identifier unchanged
// (first-write-wins on casing), and a miss inserts a new row. A name that is
// empty after trimming is "no value": the second return is false and nothing
// is written. Resolution is read-then-insert, which is safe for the intended
// single-writer usage; the schema's UNIQUE constraints are the backstop if
// this is ever driven by concurrent writers.
type Batch interface {
	ResolveUniversity(ctx context.Context, name string) (int64, bool, error)
	ResolveAuthor(ctx context.Context, name string) (int64, bool, error)
	ResolveText(ctx context.Context, title string, authorID int64) (int64, bool, error)

	// UpsertMapping inserts or fully replaces the mapping row keyed on
	// (university_id, text_id, course_code). Last write wins.
	UpsertMapping(ctx context.Context, m Mapping) error

	// LogRun records one ingest-run audit row.
	LogRun(ctx context.Context, r Run) error
}

// Author is a row of the authors dimension table.
type Author struct {
	ID   int64
	Name string
}

// University is a row of the universities dimension table.
type University struct {
	ID   int64
	Name string
}

// Text is a row of the texts dimension table. A text is identified by
// (title, author_id), never by title alone.
type Text struct {
	ID       int64
	Title    string
	AuthorID int64
}

// Mapping is a row of the syllabus_map fact table: this text was assigned in
// this course, at this university, carrying these marks/credits.
//
// Semester, Marks and Credits are deliberately untyped: the upstream extractor
// is not trusted to emit consistent types and this layer stores whatever it
// was given.
type Mapping struct {
	UniversityID int64
	TextID       int64
	Semester     any
	CourseCode   string
	Marks        any
	Credits      any
}

// Run is one ingest-run audit record.
type Run struct {
	ID         string
	Source     string
	StartedAt  time.Time
	Integrated int
	Skipped    int
}

// Counts holds per-table row totals.
type Counts struct {
	Universities int64
	Authors      int64
	Texts        int64
	Mappings     int64
	Runs         int64
}
