package memory

import (
	"strings"
	"time"
)

// Signal weights for the importance score. They sum to 1.
const (
	weightFrequency   = 0.20
	weightRecency     = 0.30
	weightEmotion     = 0.20
	weightSpecificity = 0.15
	weightFeedback    = 0.15
)

// emotionalWords are the keywords whose presence in key+value marks a
// record as emotionally loaded.
var emotionalWords = []string{"喜欢", "讨厌", "希望", "必须", "绝对", "重要", "关键"}

// Importance is the multi-signal importance of a record.
type Importance struct {
	Total    float64 `json:"total"`
	Priority Priority `json:"priority"`

	Frequency   float64 `json:"frequency"`
	Recency     float64 `json:"recency"`
	Emotion     float64 `json:"emotion"`
	Specificity float64 `json:"specificity"`
	Feedback    float64 `json:"feedback"`
}

// Scorer computes importance scores from decaying signals.
type Scorer struct{}

// NewScorer creates a Scorer.
func NewScorer() *Scorer { return &Scorer{} }

// Score computes the importance of a record at the given time. The
// total is clamped to [0,1]; priority is high above 0.7, medium above
// 0.4, low otherwise.
func (s *Scorer) Score(rec Record, now time.Time) Importance {
	imp := Importance{
		Frequency:   frequencyScore(rec),
		Recency:     recencyScore(rec, now),
		Emotion:     emotionScore(rec),
		Specificity: specificityScore(rec),
		Feedback:    feedbackScore(rec),
	}

	total := imp.Frequency*weightFrequency +
		imp.Recency*weightRecency +
		imp.Emotion*weightEmotion +
		imp.Specificity*weightSpecificity +
		imp.Feedback*weightFeedback
	if total > 1 {
		total = 1
	}
	if total < 0 {
		total = 0
	}
	imp.Total = total

	switch {
	case total > 0.7:
		imp.Priority = PriorityHigh
	case total > 0.4:
		imp.Priority = PriorityMedium
	default:
		imp.Priority = PriorityLow
	}
	return imp
}

func frequencyScore(rec Record) float64 {
	f := float64(rec.AccessCount) / 10
	if f > 1 {
		f = 1
	}
	return f
}

// recencyScore is a step function over age, not a continuous decay.
// The forgetter applies its own exponential decay on top; the overlap
// is deliberate and penalizes both old and unreinforced records.
func recencyScore(rec Record, now time.Time) float64 {
	newest := rec.CreatedAt
	if rec.UpdatedAt.After(newest) {
		newest = rec.UpdatedAt
	}
	ageDays := now.Sub(newest).Hours() / 24
	switch {
	case ageDays < 1:
		return 1
	case ageDays < 7:
		return 0.8
	case ageDays < 30:
		return 0.5
	case ageDays < 90:
		return 0.3
	default:
		return 0.1
	}
}

func emotionScore(rec Record) float64 {
	text := rec.Key + " " + string(rec.Value)
	count := 0
	for _, w := range emotionalWords {
		if strings.Contains(text, w) {
			count++
		}
	}
	score := float64(count) * 0.2
	if score > 1 {
		score = 1
	}
	return score
}

func specificityScore(rec Record) float64 {
	var score float64
	if rec.Key != "" && !strings.Contains(rec.Key, "unknown") {
		score += 0.3
	}
	if hasValue(rec.Value) {
		score += 0.3
	}
	if rec.SourceQuestion != "" {
		score += 0.4
	}
	return score
}

func feedbackScore(rec Record) float64 {
	pos, neg := float64(rec.PositiveFeedback), float64(rec.NegativeFeedback)
	if pos+neg == 0 {
		return 0.5
	}
	// Maps net sentiment from [-1,1] onto [0,1].
	return ((pos-neg)/(pos+neg) + 1) / 2
}

// hasValue reports whether a raw JSON payload carries anything.
func hasValue(raw []byte) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}
