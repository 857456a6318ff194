package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/malay-max/syllabus-scraper/pkg/syllabus/store"
)

func openTestStore(t *testing.T) (store.Store, string) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, dbPath
}

func rawDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}

	err = st.Batch(ctx, func(b store.Batch) error {
		_, _, err := b.ResolveAuthor(ctx, "Plato")
		return err
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening must not fail or truncate existing data.
	st, err = Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer st.Close()

	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Authors != 1 {
		t.Errorf("author row should survive reopen, got %d", counts.Authors)
	}
}

func TestResolveAuthorTrimmedDedup(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	var ids []int64
	err := st.Batch(ctx, func(b store.Batch) error {
		for _, name := range []string{"Plato", " Plato ", "Plato "} {
			id, ok, err := b.ResolveAuthor(ctx, name)
			if err != nil {
				return err
			}
			if !ok {
				t.Errorf("ResolveAuthor(%q) reported no value", name)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	if ids[0] != ids[1] || ids[1] != ids[2] {
		t.Errorf("trimmed-equal names should resolve to one id, got %v", ids)
	}

	counts, _ := st.Counts(ctx)
	if counts.Authors != 1 {
		t.Errorf("expected 1 author row, got %d", counts.Authors)
	}
}

func TestResolveIsCaseSensitive(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	err := st.Batch(ctx, func(b store.Batch) error {
		id1, _, err := b.ResolveAuthor(ctx, "Plato")
		if err != nil {
			return err
		}
		id2, _, err := b.ResolveAuthor(ctx, "PLATO")
		if err != nil {
			return err
		}
		if id1 == id2 {
			t.Error("lookup is case-sensitive; differing casings are distinct rows")
		}

		// A repeat with the original casing returns the stored row unchanged.
		again, _, err := b.ResolveAuthor(ctx, "Plato")
		if err != nil {
			return err
		}
		if again != id1 {
			t.Errorf("repeat resolve = %d, want %d", again, id1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
}

func TestResolveEmptyNameIsNoValue(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	err := st.Batch(ctx, func(b store.Batch) error {
		for _, name := range []string{"", "   ", "\t\n"} {
			_, ok, err := b.ResolveUniversity(ctx, name)
			if err != nil {
				return err
			}
			if ok {
				t.Errorf("ResolveUniversity(%q) should report no value", name)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	counts, _ := st.Counts(ctx)
	if counts.Universities != 0 {
		t.Errorf("empty names must not create rows, got %d", counts.Universities)
	}
}

func TestResolveTextKeyedOnTitleAndAuthor(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	err := st.Batch(ctx, func(b store.Batch) error {
		butler, _, err := b.ResolveAuthor(ctx, "Samuel Butler")
		if err != nil {
			return err
		}
		wilson, _, err := b.ResolveAuthor(ctx, "Emily Wilson")
		if err != nil {
			return err
		}

		t1, _, err := b.ResolveText(ctx, "The Odyssey", butler)
		if err != nil {
			return err
		}
		t2, _, err := b.ResolveText(ctx, "The Odyssey", wilson)
		if err != nil {
			return err
		}
		if t1 == t2 {
			t.Error("same title under different authors must be distinct texts")
		}

		t3, _, err := b.ResolveText(ctx, " The Odyssey ", butler)
		if err != nil {
			return err
		}
		if t3 != t1 {
			t.Errorf("trimmed title should resolve to existing text, got %d want %d", t3, t1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	counts, _ := st.Counts(ctx)
	if counts.Texts != 2 {
		t.Errorf("expected 2 text rows, got %d", counts.Texts)
	}
}

func TestUpsertMappingReplaces(t *testing.T) {
	st, dbPath := openTestStore(t)
	ctx := context.Background()

	var uniID, textID int64
	err := st.Batch(ctx, func(b store.Batch) error {
		var err error
		uniID, _, err = b.ResolveUniversity(ctx, "X Univ")
		if err != nil {
			return err
		}
		authorID, _, err := b.ResolveAuthor(ctx, "A. Poe")
		if err != nil {
			return err
		}
		textID, _, err = b.ResolveText(ctx, "The Raven", authorID)
		if err != nil {
			return err
		}

		m := store.Mapping{UniversityID: uniID, TextID: textID, Semester: int64(3), CourseCode: "ENG301", Marks: "50", Credits: int64(4)}
		if err := b.UpsertMapping(ctx, m); err != nil {
			return err
		}
		m.Marks = "60"
		m.Semester = int64(4)
		return b.UpsertMapping(ctx, m)
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	counts, _ := st.Counts(ctx)
	if counts.Mappings != 1 {
		t.Fatalf("upsert should replace in place, got %d rows", counts.Mappings)
	}

	db := rawDB(t, dbPath)
	var semester int64
	var marks string
	err = db.QueryRow(`SELECT semester, marks FROM syllabus_map WHERE university_id=? AND text_id=? AND course_code=?`,
		uniID, textID, "ENG301").Scan(&semester, &marks)
	if err != nil {
		t.Fatalf("query mapping: %v", err)
	}
	if semester != 4 || marks != "60" {
		t.Errorf("last write should win, got semester=%d marks=%q", semester, marks)
	}
}

func TestUntypedFieldsPassThrough(t *testing.T) {
	// Non-numeric semester/credits from the extractor are stored as given.
	st, dbPath := openTestStore(t)
	ctx := context.Background()

	err := st.Batch(ctx, func(b store.Batch) error {
		uniID, _, err := b.ResolveUniversity(ctx, "X Univ")
		if err != nil {
			return err
		}
		authorID, _, err := b.ResolveAuthor(ctx, "A. Poe")
		if err != nil {
			return err
		}
		textID, _, err := b.ResolveText(ctx, "The Raven", authorID)
		if err != nil {
			return err
		}
		return b.UpsertMapping(ctx, store.Mapping{
			UniversityID: uniID, TextID: textID,
			Semester: "III", CourseCode: "ENG301", Marks: nil, Credits: "four",
		})
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	db := rawDB(t, dbPath)
	var semester, credits string
	var marks any
	err = db.QueryRow(`SELECT semester, credits, marks FROM syllabus_map WHERE course_code=?`, "ENG301").
		Scan(&semester, &credits, &marks)
	if err != nil {
		t.Fatalf("query mapping: %v", err)
	}
	if semester != "III" || credits != "four" {
		t.Errorf("pass-through values mangled: semester=%q credits=%q", semester, credits)
	}
	if marks != nil {
		t.Errorf("nil marks should store NULL, got %v", marks)
	}
}

func TestBatchRollsBackOnError(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.Batch(ctx, func(b store.Batch) error {
		if _, _, err := b.ResolveAuthor(ctx, "Plato"); err != nil {
			return err
		}
		if _, _, err := b.ResolveUniversity(ctx, "X Univ"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Batch should surface fn error, got %v", err)
	}

	counts, _ := st.Counts(ctx)
	if counts.Authors != 0 || counts.Universities != 0 {
		t.Errorf("failed batch must leave no rows, got %+v", counts)
	}
}

func TestLogRunPersists(t *testing.T) {
	st, dbPath := openTestStore(t)
	ctx := context.Background()

	run := store.Run{
		ID:         "01TESTULID",
		Source:     "some/syllabus.pdf",
		StartedAt:  time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC),
		Integrated: 7,
		Skipped:    2,
	}
	err := st.Batch(ctx, func(b store.Batch) error {
		return b.LogRun(ctx, run)
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}

	db := rawDB(t, dbPath)
	var source, startedAt string
	var integrated, skipped int
	err = db.QueryRow(`SELECT source, started_at, integrated, skipped FROM ingest_runs WHERE id=?`, run.ID).
		Scan(&source, &startedAt, &integrated, &skipped)
	if err != nil {
		t.Fatalf("query run: %v", err)
	}
	if source != run.Source || integrated != 7 || skipped != 2 {
		t.Errorf("run row mismatch: %q %d %d", source, integrated, skipped)
	}
	if startedAt != "2025-11-05T12:00:00Z" {
		t.Errorf("started_at = %q, want RFC3339 UTC", startedAt)
	}
}
