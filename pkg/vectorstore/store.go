// Package vectorstore persists embedding vectors alongside their source
// documents and serves brute-force cosine nearest-neighbor queries.
package vectorstore

import (
	"context"
	"errors"
)

// Common errors returned by vector stores.
var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyQuery        = errors.New("query vector is empty")
)

// Entry is a stored vector with its source document and display
// metadata. Entries are never mutated in place; re-embedding requires
// delete + re-add.
type Entry struct {
	ID       string                 `json:"id"`
	Vector   []float32              `json:"vector"`
	Document string                 `json:"document"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Result is a single nearest-neighbor hit. Distance is cosine distance
// (1 - cosine similarity), so lower is closer.
type Result struct {
	ID       string                 `json:"id"`
	Document string                 `json:"content"`
	Distance float64                `json:"distance"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Store is the interface for vector storage backends.
type Store interface {
	// AddVectors appends entries and persists them.
	AddVectors(ctx context.Context, entries []Entry) error

	// Search returns up to limit entries ordered by ascending cosine
	// distance to the query vector.
	Search(ctx context.Context, query []float32, limit int) ([]Result, error)

	// DeleteByID removes the entries with the given ids. Unknown ids
	// are ignored.
	DeleteByID(ctx context.Context, ids []string) error

	// DeleteAll removes every entry.
	DeleteAll(ctx context.Context) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}
