// Package semantic composes the TF-IDF embedder with a vector store
// and applies a similarity-threshold cutoff over search results.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/engramkit/engram/pkg/embedding"
	"github.com/engramkit/engram/pkg/vectorstore"
)

// DefaultSimilarityThreshold is the minimum score a hit needs to be
// returned.
const DefaultSimilarityThreshold = 0.1

// Document is the input to AddDocument.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
}

// Hit is a single search result, ordered by descending score.
type Hit struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Search indexes documents and retrieves them by relevance to a query.
type Search struct {
	embedder  *embedding.TFIDF
	store     vectorstore.Store
	threshold float64
}

// New creates a Search over the given embedder and store. A threshold
// of 0 selects DefaultSimilarityThreshold.
func New(embedder *embedding.TFIDF, store vectorstore.Store, threshold float64) *Search {
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Search{embedder: embedder, store: store, threshold: threshold}
}

// Threshold returns the active similarity cutoff.
func (s *Search) Threshold() float64 { return s.threshold }

// AddDocument embeds and stores a document, generating an id if the
// document has none. Returns the id under which it was indexed.
func (s *Search) AddDocument(ctx context.Context, doc Document) (string, error) {
	text := doc.Content
	if text == "" {
		raw, err := json.Marshal(doc.Metadata)
		if err != nil {
			return "", fmt.Errorf("encode document fallback: %w", err)
		}
		text = string(raw)
	}

	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}

	meta := make(map[string]interface{}, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["id"] = id

	vector := s.embedder.Embed([]string{text})[0]
	err := s.store.AddVectors(ctx, []vectorstore.Entry{{
		ID:       id,
		Vector:   vector,
		Document: text,
		Metadata: meta,
	}})
	if err != nil {
		return "", fmt.Errorf("store vector: %w", err)
	}
	return id, nil
}

// SearchQuery embeds the query, retrieves nearest neighbors, converts
// distance back to similarity, and drops every hit below the
// threshold. Ties keep the store's distance order.
func (s *Search) SearchQuery(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	vector := s.embedder.EmbedQuery(query)

	results, err := s.store.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		score := 1 - r.Distance
		if score < s.threshold {
			continue
		}
		hits = append(hits, Hit{
			ID:       r.ID,
			Content:  r.Document,
			Score:    score,
			Metadata: r.Metadata,
		})
	}
	return hits, nil
}

// DeleteDocument removes the document with the given id from the index.
func (s *Search) DeleteDocument(ctx context.Context, id string) error {
	return s.store.DeleteByID(ctx, []string{id})
}

// DeleteAll clears the index.
func (s *Search) DeleteAll(ctx context.Context) error {
	return s.store.DeleteAll(ctx)
}

// Count returns the number of indexed documents.
func (s *Search) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}
