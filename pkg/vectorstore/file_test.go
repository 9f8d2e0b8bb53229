package vectorstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

// makeVector creates a unit vector pointing at angle in the first two
// dimensions.
func makeVector(angle float64, dim int) []float32 {
	v := make([]float32, dim)
	v[0] = float32(math.Cos(angle))
	v[1] = float32(math.Sin(angle))
	return v
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "vectors.json"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestAddAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddVectors(ctx, []Entry{
		{ID: "a", Vector: makeVector(0, 8), Document: "likes blue"},
		{ID: "b", Vector: makeVector(math.Pi/2, 8), Document: "works at night"},
	})
	if err != nil {
		t.Fatalf("AddVectors: %v", err)
	}

	results, err := s.Search(ctx, makeVector(0.05, 8), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("expected closest id a, got %s", results[0].ID)
	}
	if results[0].Distance >= results[1].Distance {
		t.Errorf("expected ascending distance order: %f then %f", results[0].Distance, results[1].Distance)
	}
}

func TestSearchLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := s.AddVectors(ctx, []Entry{{ID: string(rune('a' + i)), Vector: makeVector(float64(i)/10, 8)}})
		if err != nil {
			t.Fatalf("AddVectors: %v", err)
		}
	}

	results, err := s.Search(ctx, makeVector(0, 8), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Search(context.Background(), nil, 5); err != ErrEmptyQuery {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestZeroNormEntryNeverDividesByZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddVectors(ctx, []Entry{{ID: "zero", Vector: make([]float32, 8)}})
	if err != nil {
		t.Fatalf("AddVectors: %v", err)
	}
	results, err := s.Search(ctx, makeVector(0, 8), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Similarity of a zero-norm vector is defined as 0, distance 1.
	if results[0].Distance != 1 {
		t.Errorf("expected distance 1 for zero vector, got %f", results[0].Distance)
	}
}

func TestDeleteByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddVectors(ctx, []Entry{
		{ID: "a", Vector: makeVector(0, 8)},
		{ID: "b", Vector: makeVector(1, 8)},
	})
	if err != nil {
		t.Fatalf("AddVectors: %v", err)
	}
	if err := s.DeleteByID(ctx, []string{"a", "missing"}); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.json")
	ctx := context.Background()

	s, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	err = s.AddVectors(ctx, []Entry{{
		ID:       "a",
		Vector:   makeVector(0, 8),
		Document: "likes blue",
		Metadata: map[string]interface{}{"type": "preference"},
	}})
	if err != nil {
		t.Fatalf("AddVectors: %v", err)
	}

	// Reopen from the same file.
	reopened, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	n, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", n)
	}
	results, err := reopened.Search(ctx, makeVector(0, 8), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Document != "likes blue" {
		t.Errorf("expected document to survive reopen, got %q", results[0].Document)
	}
	if results[0].Metadata["type"] != "preference" {
		t.Errorf("expected metadata to survive reopen, got %v", results[0].Metadata)
	}
}

func TestDeleteAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddVectors(ctx, []Entry{{ID: "a", Vector: makeVector(0, 8)}})
	if err != nil {
		t.Fatalf("AddVectors: %v", err)
	}
	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	n, _ := s.Count(ctx)
	if n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
}
