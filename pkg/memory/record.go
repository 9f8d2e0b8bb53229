// Package memory provides a persistent store for typed memory records
// with lifecycle metadata, importance scoring, decay-based forgetting,
// and semantic retrieval.
package memory

import (
	"encoding/json"
	"errors"
	"time"
)

// Common errors returned by the memory store.
var (
	ErrEmptyKey   = errors.New("memory key is empty")
	ErrEmptyQuery = errors.New("query text is empty")
)

// DefaultUserID partitions records when the caller does not name a
// user.
const DefaultUserID = "default-user"

// Type tags what kind of knowledge a record holds.
type Type string

const (
	TypePreference Type = "preference"
	TypeHabit      Type = "habit"
	TypeConstraint Type = "constraint"
	TypeExperience Type = "experience"
	TypeError      Type = "error"
	TypeUnknown    Type = "unknown"
)

// Priority ranks records for consolidation and scoring.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank orders priorities for consolidation: high > medium > low > unset.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Record is a single memory. (user_id, key) has at most one active
// record after consolidation; superseded records stay around, inactive,
// for audit.
type Record struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Type           Type            `json:"type"`
	Key            string          `json:"key"`
	Value          json.RawMessage `json:"value,omitempty"`
	SourceQuestion string          `json:"source_question,omitempty"`
	Context        json.RawMessage `json:"context,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// ExpiresAt is kept as the raw string the caller supplied; empty
	// means never, and an unparseable value is treated as never too
	// (fail-open at purge time).
	ExpiresAt string `json:"expires_at,omitempty"`

	Active       bool     `json:"active"`
	Priority     Priority `json:"priority"`
	Version      string   `json:"version"`
	SupersededBy string   `json:"superseded_by,omitempty"`

	AccessCount      int `json:"access_count,omitempty"`
	PositiveFeedback int `json:"positive_feedback,omitempty"`
	NegativeFeedback int `json:"negative_feedback,omitempty"`

	Meta map[string]interface{} `json:"meta,omitempty"`
}

// AddInput is the caller-supplied part of a new record. Zero-valued
// fields get defaults on add.
type AddInput struct {
	ID             string                 `json:"id,omitempty"`
	UserID         string                 `json:"user_id,omitempty"`
	Type           Type                   `json:"type,omitempty"`
	Key            string                 `json:"key"`
	Value          json.RawMessage        `json:"value,omitempty"`
	SourceQuestion string                 `json:"source_question,omitempty"`
	Context        json.RawMessage        `json:"context,omitempty"`
	ExpiresAt      string                 `json:"expires_at,omitempty"`
	Inactive       bool                   `json:"inactive,omitempty"`
	Priority       Priority               `json:"priority,omitempty"`
	Version        string                 `json:"version,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

// Patch carries partial updates for Update. Nil fields are left alone.
type Patch struct {
	Type           *Type                  `json:"type,omitempty"`
	Key            *string                `json:"key,omitempty"`
	Value          json.RawMessage        `json:"value,omitempty"`
	SourceQuestion *string                `json:"source_question,omitempty"`
	Context        json.RawMessage        `json:"context,omitempty"`
	ExpiresAt      *string                `json:"expires_at,omitempty"`
	Active         *bool                  `json:"active,omitempty"`
	Priority       *Priority              `json:"priority,omitempty"`
	AccessCount    *int                   `json:"access_count,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

// Filter narrows record queries.
type Filter struct {
	Type       Type
	Key        string
	ActiveOnly bool
}

// ScoredRecord is a record annotated with a semantic-search score.
type ScoredRecord struct {
	Record
	Score float64 `json:"score"`
}

// ConsolidateResult reports a consolidation pass over one (user, key)
// pair. Merged is nil when there was nothing to do.
type ConsolidateResult struct {
	Merged     *Record  `json:"merged"`
	Superseded []string `json:"superseded,omitempty"`
	Count      int      `json:"count"`
}

// Message is one turn of a conversation handed to the extractor.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// parseExpiry returns the expiry time and whether it is usable.
// Empty and malformed values both read as "never expires".
func parseExpiry(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
