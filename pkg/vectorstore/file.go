package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/engramkit/engram/pkg/vmath"
)

// FileStore keeps all entries in memory and rewrites a single JSON file
// ({"vectors": [...]}) on every mutation. Search scans every stored
// vector, so queries are O(n) over the store size.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	log     *slog.Logger
}

// fileDoc is the on-disk shape of the vector file.
type fileDoc struct {
	Vectors []Entry `json:"vectors"`
}

// NewFileStore opens (or creates) the vector file at path. A missing or
// unreadable file falls back to an empty store; the failure is logged,
// not returned.
func NewFileStore(path string, log *slog.Logger) (*FileStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}

	s := &FileStore{path: path, log: log}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("vector file unreadable, starting empty", "path", path, "error", err)
		}
		return s, nil
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("vector file corrupt, starting empty", "path", path, "error", err)
		return s, nil
	}
	s.entries = doc.Vectors
	return s, nil
}

// AddVectors appends entries and persists the whole file. All entries
// in a store share one vector width.
func (s *FileStore) AddVectors(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if len(s.entries) > 0 && len(e.Vector) != len(s.entries[0].Vector) {
			return ErrDimensionMismatch
		}
	}
	s.entries = append(s.entries, entries...)
	return s.persist()
}

// Search returns the limit nearest entries by cosine distance.
// Zero-norm vectors have similarity 0 by definition, never a division
// by zero.
func (s *FileStore) Search(ctx context.Context, query []float32, limit int) ([]Result, error) {
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}

	s.mu.Lock()
	results := make([]Result, 0, len(s.entries))
	for _, e := range s.entries {
		results = append(results, Result{
			ID:       e.ID,
			Document: e.Document,
			Distance: vmath.CosineDistance(query, e.Vector),
			Metadata: e.Metadata,
		})
	}
	s.mu.Unlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteByID removes matching entries and persists.
func (s *FileStore) DeleteByID(ctx context.Context, ids []string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return s.persist()
}

// DeleteAll removes every entry and persists.
func (s *FileStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return s.persist()
}

// Count returns the number of stored entries.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// Close is a no-op; the file is rewritten synchronously on every
// mutation.
func (s *FileStore) Close() error { return nil }

// persist rewrites the backing file. Callers hold s.mu.
func (s *FileStore) persist() error {
	doc := fileDoc{Vectors: s.entries}
	if doc.Vectors == nil {
		doc.Vectors = []Entry{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vectors: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write vector file: %w", err)
	}
	return nil
}
