package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/malay-max/syllabus-scraper/pkg/syllabus/store"
)

// sqliteStore implements the store.Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at path and ensures the
// syllabus schema exists. Safe to call on every run: existing tables and data
// are left untouched.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist. Uniqueness of the dimension
// tables and the composite primary key of the fact table are enforced here, at
// the storage layer, so repeated or racing runs cannot produce duplicates.
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS authors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS texts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT,
	author_id INTEGER,
	UNIQUE(title, author_id),
	FOREIGN KEY(author_id) REFERENCES authors(id)
);

CREATE TABLE IF NOT EXISTS universities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS syllabus_map (
	university_id INTEGER,
	text_id INTEGER,
	semester INTEGER,
	course_code TEXT,
	marks TEXT,
	credits INTEGER,
	PRIMARY KEY (university_id, text_id, course_code),
	FOREIGN KEY(university_id) REFERENCES universities(id),
	FOREIGN KEY(text_id) REFERENCES texts(id)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	started_at TEXT NOT NULL,
	integrated INTEGER NOT NULL,
	skipped INTEGER NOT NULL
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// Batch implements store.Store. The transaction commits only if fn returns
// nil; any error rolls back every write issued through the Batch.
func (s *sqliteStore) Batch(ctx context.Context, fn func(store.Batch) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&sqliteBatch{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// Counts reports row totals per table.
func (s *sqliteStore) Counts(ctx context.Context) (store.Counts, error) {
	var c store.Counts
	for _, q := range []struct {
		table string
		dst   *int64
	}{
		{"universities", &c.Universities},
		{"authors", &c.Authors},
		{"texts", &c.Texts},
		{"syllabus_map", &c.Mappings},
		{"ingest_runs", &c.Runs},
	} {
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, q.table)).Scan(q.dst); err != nil {
			return store.Counts{}, err
		}
	}
	return c, nil
}

// sqliteBatch implements store.Batch on top of one open transaction.
type sqliteBatch struct {
	tx *sql.Tx
}

func (b *sqliteBatch) ResolveUniversity(ctx context.Context, name string) (int64, bool, error) {
	return b.resolveByName(ctx, "universities", name)
}

func (b *sqliteBatch) ResolveAuthor(ctx context.Context, name string) (int64, bool, error) {
	return b.resolveByName(ctx, "authors", name)
}

// resolveByName is the get-or-create for the single-column dimension tables.
// The insert uses ON CONFLICT DO NOTHING plus a reselect so a concurrent
// writer hitting the UNIQUE constraint still resolves to the surviving row.
func (b *sqliteBatch) resolveByName(ctx context.Context, table, name string) (int64, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, nil
	}

	var id int64
	err := b.tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, table), name).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, err
	}

	res, err := b.tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, table), name)
	if err != nil {
		return 0, false, err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}

	// Lost the insert to a concurrent writer; the row exists now.
	if err := b.tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, table), name).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (b *sqliteBatch) ResolveText(ctx context.Context, title string, authorID int64) (int64, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, false, nil
	}

	var id int64
	err := b.tx.QueryRowContext(ctx,
		`SELECT id FROM texts WHERE title = ? AND author_id = ?`, title, authorID).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, err
	}

	res, err := b.tx.ExecContext(ctx,
		`INSERT INTO texts (title, author_id) VALUES (?, ?) ON CONFLICT(title, author_id) DO NOTHING`,
		title, authorID)
	if err != nil {
		return 0, false, err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}

	if err := b.tx.QueryRowContext(ctx,
		`SELECT id FROM texts WHERE title = ? AND author_id = ?`, title, authorID).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// UpsertMapping inserts or fully replaces the row keyed on
// (university_id, text_id, course_code). INSERT OR REPLACE, not a field
// merge: the prior row's semester/marks/credits are discarded.
func (b *sqliteBatch) UpsertMapping(ctx context.Context, m store.Mapping) error {
	_, err := b.tx.ExecContext(ctx, `
INSERT OR REPLACE INTO syllabus_map
(university_id, text_id, semester, course_code, marks, credits)
VALUES (?, ?, ?, ?, ?, ?);
`, m.UniversityID, m.TextID, m.Semester, m.CourseCode, m.Marks, m.Credits)
	return err
}

// LogRun records one ingest-run audit row.
func (b *sqliteBatch) LogRun(ctx context.Context, r store.Run) error {
	_, err := b.tx.ExecContext(ctx, `
INSERT INTO ingest_runs (id, source, started_at, integrated, skipped)
VALUES (?, ?, ?, ?, ?);
`, r.ID, r.Source, r.StartedAt.UTC().Format(time.RFC3339), r.Integrated, r.Skipped)
	return err
}
