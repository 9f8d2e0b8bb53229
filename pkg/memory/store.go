package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/engramkit/engram/pkg/semantic"
)

// Store owns the canonical record list and its backing file. Every
// mutation rewrites the whole file before returning; a single mutex
// serializes writers, which is the intended concurrency discipline for
// an agent-local store.
type Store struct {
	mu      sync.Mutex
	path    string
	records []Record

	semantic  *semantic.Search
	extractor *Extractor
	scorer    *Scorer
	forgetter *Forgetter
	log       *slog.Logger

	now func() time.Time
}

// Options configures optional collaborators of a Store. A nil Semantic
// disables vector indexing and search; a nil Extractor disables
// conversation learning.
type Options struct {
	Semantic      *semantic.Search
	Extractor     *Extractor
	DecayRate     float64
	MinImportance float64
	Logger        *slog.Logger
}

// storeDoc is the on-disk shape of the memory file.
type storeDoc struct {
	Memories []Record `json:"memories"`
}

// NewStore opens (or creates) the memory file at path. Load failures
// fall back to an empty store and are logged, never returned; persist
// failures on later mutations do propagate.
func NewStore(path string, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &Store{
		path:      path,
		semantic:  opts.Semantic,
		extractor: opts.Extractor,
		scorer:    NewScorer(),
		forgetter: NewForgetter(opts.DecayRate, opts.MinImportance),
		log:       log,
		now:       time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("memory file unreadable, starting empty", "path", path, "error", err)
		}
		return s, nil
	}
	var doc storeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("memory file corrupt, starting empty", "path", path, "error", err)
		return s, nil
	}
	s.records = doc.Memories
	return s, nil
}

// Add fills defaults, appends the record, and persists synchronously.
func (s *Store) Add(input AddInput) (*Record, error) {
	if input.Key == "" {
		return nil, ErrEmptyKey
	}

	now := s.now()
	rec := Record{
		ID:             input.ID,
		UserID:         input.UserID,
		Type:           input.Type,
		Key:            input.Key,
		Value:          input.Value,
		SourceQuestion: input.SourceQuestion,
		Context:        input.Context,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      input.ExpiresAt,
		Active:         !input.Inactive,
		Priority:       input.Priority,
		Version:        input.Version,
		Meta:           input.Meta,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UserID == "" {
		rec.UserID = DefaultUserID
	}
	if rec.Type == "" {
		rec.Type = TypeUnknown
	}
	if rec.Priority == "" {
		rec.Priority = PriorityMedium
	}
	if rec.Version == "" {
		rec.Version = "1.0.0"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if err := s.persist(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get returns the record with the given id, or nil.
func (s *Store) Get(id string) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		rec := s.records[i]
		return &rec
	}
	return nil
}

// ForUser returns the user's records, narrowed by the filter.
func (s *Store) ForUser(userID string, f Filter) []Record {
	if userID == "" {
		userID = DefaultUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.records {
		if rec.UserID != userID {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		if f.Key != "" && rec.Key != f.Key {
			continue
		}
		if f.ActiveOnly && !rec.Active {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// List returns every record for the user, no extra filters.
func (s *Store) List(userID string) []Record {
	return s.ForUser(userID, Filter{})
}

// ActiveForKey returns the active record for (userID, key), or nil.
func (s *Store) ActiveForKey(userID, key string) *Record {
	list := s.ForUser(userID, Filter{Key: key, ActiveOnly: true})
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

// Update merges the patch into the record, bumps updated_at, and
// persists. A missing id yields (nil, nil), not an error.
func (s *Store) Update(id string, patch Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return nil, nil
	}

	rec := &s.records[i]
	if patch.Type != nil {
		rec.Type = *patch.Type
	}
	if patch.Key != nil {
		rec.Key = *patch.Key
	}
	if patch.Value != nil {
		rec.Value = patch.Value
	}
	if patch.SourceQuestion != nil {
		rec.SourceQuestion = *patch.SourceQuestion
	}
	if patch.Context != nil {
		rec.Context = patch.Context
	}
	if patch.ExpiresAt != nil {
		rec.ExpiresAt = *patch.ExpiresAt
	}
	if patch.Active != nil {
		rec.Active = *patch.Active
	}
	if patch.Priority != nil {
		rec.Priority = *patch.Priority
	}
	if patch.AccessCount != nil {
		rec.AccessCount = *patch.AccessCount
	}
	if patch.Meta != nil {
		rec.Meta = patch.Meta
	}
	rec.UpdatedAt = s.now()

	if err := s.persist(); err != nil {
		return nil, err
	}
	out := *rec
	return &out, nil
}

// Delete removes the record and its vector entry, persists, and
// returns the removed record. A missing id yields (nil, nil).
func (s *Store) Delete(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, nil
	}
	rec := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	err := s.persist()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.semantic != nil {
		if derr := s.semantic.DeleteDocument(ctx, id); derr != nil {
			// A dangling vector is tolerated and filtered at read time.
			s.log.Warn("vector delete failed", "id", id, "error", derr)
		}
	}
	return &rec, nil
}

// PurgeExpired removes every record whose expires_at parses to a time
// in the past. Malformed expiries are kept (fail-open). Returns the
// number removed.
func (s *Store) PurgeExpired() (int, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.records)
	kept := s.records[:0]
	for _, rec := range s.records {
		if exp, ok := parseExpiry(rec.ExpiresAt); ok && !exp.After(now) {
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	if err := s.persist(); err != nil {
		return 0, err
	}
	return before - len(s.records), nil
}

// Consolidate keeps one winner among the active records sharing
// (userID, key), preferring highest priority and then most recent
// created_at, deactivates the rest, and links them to the winner.
// Idempotent: a second call finds at most one active record and does
// nothing.
func (s *Store) Consolidate(userID, key string) (*ConsolidateResult, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []int
	for i, rec := range s.records {
		if rec.UserID == userID && rec.Key == key && rec.Active {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) <= 1 {
		return &ConsolidateResult{}, nil
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ra, rb := s.records[candidates[a]], s.records[candidates[b]]
		if pa, pb := ra.Priority.rank(), rb.Priority.rank(); pa != pb {
			return pa > pb
		}
		return ra.CreatedAt.After(rb.CreatedAt)
	})

	winner := &s.records[candidates[0]]
	now := s.now()
	superseded := make([]string, 0, len(candidates)-1)
	for _, idx := range candidates[1:] {
		loser := &s.records[idx]
		loser.Active = false
		loser.SupersededBy = winner.ID
		loser.UpdatedAt = now
		superseded = append(superseded, loser.ID)
	}
	if err := s.persist(); err != nil {
		return nil, err
	}

	merged := *winner
	return &ConsolidateResult{
		Merged:     &merged,
		Superseded: superseded,
		Count:      len(superseded),
	}, nil
}

// AddWithVector adds the record, then best-effort indexes it for
// semantic search. The record commit is the source of truth: indexing
// failures are logged and swallowed, never propagated.
func (s *Store) AddWithVector(ctx context.Context, input AddInput) (*Record, error) {
	rec, err := s.Add(input)
	if err != nil {
		return nil, err
	}
	if s.semantic == nil {
		return rec, nil
	}

	_, err = s.semantic.AddDocument(ctx, semanticDocument(*rec))
	if err != nil {
		s.log.Warn("vector indexing failed, record kept", "id", rec.ID, "error", err)
	}
	return rec, nil
}

// SemanticSearch runs the query through the semantic index and
// re-hydrates each hit from the canonical list, attaching the score.
// Hits whose backing record is gone are dropped. Search faults degrade
// to an empty result set rather than erroring.
func (s *Store) SemanticSearch(ctx context.Context, query string, limit int) ([]ScoredRecord, error) {
	if s.semantic == nil {
		return nil, nil
	}
	if query == "" {
		return nil, ErrEmptyQuery
	}

	hits, err := s.semantic.SearchQuery(ctx, query, limit)
	if err != nil {
		s.log.Warn("semantic search failed", "query", query, "error", err)
		return nil, nil
	}

	var out []ScoredRecord
	var touched []string
	s.mu.Lock()
	for _, h := range hits {
		if i := s.index(h.ID); i >= 0 {
			out = append(out, ScoredRecord{Record: s.records[i], Score: h.Score})
			touched = append(touched, h.ID)
		}
	}
	s.mu.Unlock()

	s.touch(touched)
	return out, nil
}

// Learn applies the extraction policy to the conversation and adds
// every candidate whose (user_id, key) has no active record yet,
// without vector indexing.
func (s *Store) Learn(messages []Message, userID string) ([]Record, error) {
	return s.learn(context.Background(), messages, userID, false)
}

// AutoLearn is Learn plus best-effort vector indexing of each added
// record.
func (s *Store) AutoLearn(ctx context.Context, messages []Message, userID string) ([]Record, error) {
	return s.learn(ctx, messages, userID, true)
}

func (s *Store) learn(ctx context.Context, messages []Message, userID string, index bool) ([]Record, error) {
	if s.extractor == nil {
		return nil, nil
	}

	var added []Record
	for _, input := range s.extractor.Extract(messages, userID) {
		if existing := s.ActiveForKey(input.UserID, input.Key); existing != nil {
			continue
		}
		var (
			rec *Record
			err error
		)
		if index {
			rec, err = s.AddWithVector(ctx, input)
		} else {
			rec, err = s.Add(input)
		}
		if err != nil {
			return added, fmt.Errorf("add extracted memory %q: %w", input.Key, err)
		}
		added = append(added, *rec)
	}
	return added, nil
}

// SmartForget evaluates the working set (optionally narrowed to a user
// and type), deletes everything in the forget bucket, and returns the
// cleanup decision.
func (s *Store) SmartForget(ctx context.Context, userID string, typ Type) (*Cleanup, error) {
	var working []Record
	if userID != "" {
		working = s.List(userID)
	} else {
		s.mu.Lock()
		working = append(working, s.records...)
		s.mu.Unlock()
	}
	if typ != "" {
		filtered := working[:0]
		for _, rec := range working {
			if rec.Type == typ {
				filtered = append(filtered, rec)
			}
		}
		working = filtered
	}

	plan := s.forgetter.CleanupPlan(working, s.now())
	for _, id := range plan.ToDelete {
		if _, err := s.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return &plan, nil
}

// ToReview returns the review bucket over the user's active records.
func (s *Store) ToReview(userID string) []Evaluated {
	records := s.ForUser(userID, Filter{ActiveOnly: true})
	return s.forgetter.Evaluate(records, s.now()).Review
}

// Importance returns the importance breakdown for a record, or nil.
func (s *Store) Importance(id string) *Importance {
	rec := s.Get(id)
	if rec == nil {
		return nil
	}
	imp := s.scorer.Score(*rec, s.now())
	return &imp
}

// RecordFeedback increments the positive or negative counter and bumps
// updated_at. A missing id yields (nil, nil).
func (s *Store) RecordFeedback(id string, positive bool) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return nil, nil
	}
	rec := &s.records[i]
	if positive {
		rec.PositiveFeedback++
	} else {
		rec.NegativeFeedback++
	}
	rec.UpdatedAt = s.now()
	if err := s.persist(); err != nil {
		return nil, err
	}
	out := *rec
	return &out, nil
}

// Count returns the number of records in the store.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// index returns the position of id in records, or -1. Callers hold
// s.mu.
func (s *Store) index(id string) int {
	for i, rec := range s.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

// touch bumps access counts for recalled records. Read paths must not
// fail, so persist errors are logged and dropped.
func (s *Store) touch(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if i := s.index(id); i >= 0 {
			s.records[i].AccessCount++
		}
	}
	if err := s.persist(); err != nil {
		s.log.Warn("persist after touch failed", "error", err)
	}
}

// semanticDocument is the searchable projection of a record.
func semanticDocument(rec Record) semantic.Document {
	return semantic.Document{
		ID:      rec.ID,
		Content: rec.Key + ": " + string(rec.Value),
		Metadata: map[string]interface{}{
			"user_id":  rec.UserID,
			"type":     string(rec.Type),
			"key":      rec.Key,
			"priority": string(rec.Priority),
		},
	}
}

// persist rewrites the backing file. Callers hold s.mu.
func (s *Store) persist() error {
	doc := storeDoc{Memories: s.records}
	if doc.Memories == nil {
		doc.Memories = []Record{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memories: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	return nil
}
