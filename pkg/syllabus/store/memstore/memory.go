package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/malay-max/syllabus-scraper/pkg/syllabus/store"
)

type textKey struct {
	title    string
	authorID int64
}

type mappingKey struct {
	universityID int64
	textID       int64
	courseCode   string
}

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	universities map[string]int64
	authors      map[string]int64
	texts        map[textKey]int64
	mappings     map[mappingKey]store.Mapping
	runs         []store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		nextID:       1,
		universities: make(map[string]int64),
		authors:      make(map[string]int64),
		texts:        make(map[textKey]int64),
		mappings:     make(map[mappingKey]store.Mapping),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// Batch implements store.Store. Writes are staged on a copy and applied only
// if fn returns nil, mirroring the transactional contract of the SQLite store.
func (s *Store) Batch(ctx context.Context, fn func(store.Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &batch{
		nextID:       s.nextID,
		universities: copyMap(s.universities),
		authors:      copyMap(s.authors),
		texts:        copyMap(s.texts),
		mappings:     copyMap(s.mappings),
		runs:         append([]store.Run(nil), s.runs...),
	}
	if err := fn(b); err != nil {
		return err
	}

	s.nextID = b.nextID
	s.universities = b.universities
	s.authors = b.authors
	s.texts = b.texts
	s.mappings = b.mappings
	s.runs = b.runs
	return nil
}

// Counts implements store.Store.
func (s *Store) Counts(ctx context.Context) (store.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Counts{
		Universities: int64(len(s.universities)),
		Authors:      int64(len(s.authors)),
		Texts:        int64(len(s.texts)),
		Mappings:     int64(len(s.mappings)),
		Runs:         int64(len(s.runs)),
	}, nil
}

// UniversityID returns the identifier stored for a trimmed university name.
func (s *Store) UniversityID(name string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.universities[strings.TrimSpace(name)]
	return id, ok
}

// AuthorID returns the identifier stored for a trimmed author name.
func (s *Store) AuthorID(name string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.authors[strings.TrimSpace(name)]
	return id, ok
}

// TextID returns the identifier stored for a (trimmed title, author) pair.
func (s *Store) TextID(title string, authorID int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.texts[textKey{title: strings.TrimSpace(title), authorID: authorID}]
	return id, ok
}

// GetMapping returns the mapping stored under (universityID, textID, courseCode).
func (s *Store) GetMapping(universityID, textID int64, courseCode string) (store.Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[mappingKey{universityID: universityID, textID: textID, courseCode: courseCode}]
	return m, ok
}

// Runs returns the recorded ingest runs in insertion order.
func (s *Store) Runs() []store.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.Run(nil), s.runs...)
}

type batch struct {
	nextID       int64
	universities map[string]int64
	authors      map[string]int64
	texts        map[textKey]int64
	mappings     map[mappingKey]store.Mapping
	runs         []store.Run
}

func (b *batch) ResolveUniversity(ctx context.Context, name string) (int64, bool, error) {
	return b.resolveByName(b.universities, name)
}

func (b *batch) ResolveAuthor(ctx context.Context, name string) (int64, bool, error) {
	return b.resolveByName(b.authors, name)
}

func (b *batch) resolveByName(index map[string]int64, name string) (int64, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false, nil
	}
	if id, ok := index[name]; ok {
		return id, true, nil
	}
	id := b.nextID
	b.nextID++
	index[name] = id
	return id, true, nil
}

func (b *batch) ResolveText(ctx context.Context, title string, authorID int64) (int64, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, false, nil
	}
	key := textKey{title: title, authorID: authorID}
	if id, ok := b.texts[key]; ok {
		return id, true, nil
	}
	id := b.nextID
	b.nextID++
	b.texts[key] = id
	return id, true, nil
}

func (b *batch) UpsertMapping(ctx context.Context, m store.Mapping) error {
	key := mappingKey{universityID: m.UniversityID, textID: m.TextID, courseCode: m.CourseCode}
	b.mappings[key] = m
	return nil
}

func (b *batch) LogRun(ctx context.Context, r store.Run) error {
	b.runs = append(b.runs, r)
	return nil
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
