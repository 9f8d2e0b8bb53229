package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemStore backs the Store interface with chromem-go, a pure Go
// embedded vector database. Useful when the dataset outgrows the flat
// JSON file but a remote vector service is still overkill.
type ChromemStore struct {
	db  *chromem.DB
	col *chromem.Collection
}

const chromemCollection = "memories"

// NewChromemStore creates a chromem-backed store. An empty path keeps
// everything in memory; otherwise entries persist under dir.
func NewChromemStore(dir string) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	// Embeddings are always provided by the caller, so no embedding
	// func is registered on the collection.
	col, err := db.GetOrCreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemStore{db: db, col: col}, nil
}

// AddVectors stores entries as chromem documents. Metadata is carried
// as a single JSON-encoded field since chromem metadata is flat
// string-to-string.
func (s *ChromemStore) AddVectors(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		doc := chromem.Document{
			ID:        e.ID,
			Content:   e.Document,
			Embedding: e.Vector,
		}
		if len(e.Metadata) > 0 {
			meta, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata for %s: %w", e.ID, err)
			}
			doc.Metadata = map[string]string{"meta": string(meta)}
		}
		if err := s.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", e.ID, err)
		}
	}
	return nil
}

// Search queries the collection by embedding. chromem rejects result
// counts beyond the collection size, so the limit is clamped first.
func (s *ChromemStore) Search(ctx context.Context, query []float32, limit int) ([]Result, error) {
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}
	if n := s.col.Count(); limit > n {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}

	hits, err := s.col.QueryEmbedding(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		r := Result{
			ID:       h.ID,
			Document: h.Content,
			Distance: 1 - float64(h.Similarity),
		}
		if raw, ok := h.Metadata["meta"]; ok {
			var meta map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				r.Metadata = meta
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// DeleteByID removes the documents with the given ids.
func (s *ChromemStore) DeleteByID(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// DeleteAll drops and recreates the collection.
func (s *ChromemStore) DeleteAll(ctx context.Context) error {
	if err := s.db.DeleteCollection(chromemCollection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.col = col
	return nil
}

// Count returns the number of stored documents.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.col.Count(), nil
}

// Close is a no-op; chromem persists incrementally on its own.
func (s *ChromemStore) Close() error { return nil }
