package memory

import (
	"math"
	"time"
)

// Forgetter defaults.
const (
	DefaultDecayRate     = 0.05
	DefaultMinImportance = 0.15

	// maxAgeDays is the hard cutoff: anything older is forgotten
	// regardless of its score.
	maxAgeDays = 90

	// reviewThreshold separates keep from review.
	reviewThreshold = 0.4
)

// Evaluated pairs a record with its computed retention score.
type Evaluated struct {
	Record         Record  `json:"memory"`
	RetentionScore float64 `json:"retention_score"`
}

// Evaluation buckets records into keep, review, and forget.
type Evaluation struct {
	Keep   []Evaluated `json:"keep"`
	Review []Evaluated `json:"review"`
	Forget []Evaluated `json:"forget"`
}

// CleanupSummary counts the outcome of a cleanup pass.
type CleanupSummary struct {
	Total  int `json:"total"`
	Keep   int `json:"keep"`
	Review int `json:"review"`
	Forget int `json:"forget"`
}

// Cleanup lists the ids a cleanup pass decided on. It is a pure
// decision: the owning store executes the deletions.
type Cleanup struct {
	ToDelete []string       `json:"toDelete"`
	ToReview []string       `json:"toReview"`
	Summary  CleanupSummary `json:"summary"`
}

// Forgetter applies exponential decay to importance and buckets
// records into keep/review/forget.
type Forgetter struct {
	scorer        *Scorer
	decayRate     float64
	minImportance float64
}

// NewForgetter creates a Forgetter. Non-positive parameters select the
// defaults.
func NewForgetter(decayRate, minImportance float64) *Forgetter {
	if decayRate <= 0 {
		decayRate = DefaultDecayRate
	}
	if minImportance <= 0 {
		minImportance = DefaultMinImportance
	}
	return &Forgetter{
		scorer:        NewScorer(),
		decayRate:     decayRate,
		minImportance: minImportance,
	}
}

// Evaluate computes retention scores and buckets every record.
// retention = importance × (1 − decayRate)^ageDays.
func (f *Forgetter) Evaluate(records []Record, now time.Time) Evaluation {
	var ev Evaluation
	for _, rec := range records {
		importance := f.scorer.Score(rec, now)
		ageDays := now.Sub(rec.CreatedAt).Hours() / 24
		retention := importance.Total * math.Pow(1-f.decayRate, ageDays)

		entry := Evaluated{Record: rec, RetentionScore: retention}
		switch {
		case retention < f.minImportance || ageDays > maxAgeDays:
			ev.Forget = append(ev.Forget, entry)
		case retention < reviewThreshold:
			ev.Review = append(ev.Review, entry)
		default:
			ev.Keep = append(ev.Keep, entry)
		}
	}
	return ev
}

// CleanupPlan turns an evaluation into deletion/review id lists.
func (f *Forgetter) CleanupPlan(records []Record, now time.Time) Cleanup {
	ev := f.Evaluate(records, now)
	plan := Cleanup{
		ToDelete: make([]string, 0, len(ev.Forget)),
		ToReview: make([]string, 0, len(ev.Review)),
		Summary: CleanupSummary{
			Total:  len(records),
			Keep:   len(ev.Keep),
			Review: len(ev.Review),
			Forget: len(ev.Forget),
		},
	}
	for _, e := range ev.Forget {
		plan.ToDelete = append(plan.ToDelete, e.Record.ID)
	}
	for _, e := range ev.Review {
		plan.ToReview = append(plan.ToReview, e.Record.ID)
	}
	return plan
}
