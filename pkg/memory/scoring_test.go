package memory

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreFreshEmotionalRecord(t *testing.T) {
	now := time.Now()
	rec := Record{
		Key:            "preference:color",
		Value:          json.RawMessage(`{"raw":"我喜欢蓝色，这很重要"}`),
		SourceQuestion: "你喜欢什么颜色",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	imp := NewScorer().Score(rec, now)
	if !almostEqual(imp.Recency, 1) {
		t.Errorf("recency = %f, want 1", imp.Recency)
	}
	// 喜欢 and 重要 both appear.
	if !almostEqual(imp.Emotion, 0.4) {
		t.Errorf("emotion = %f, want 0.4", imp.Emotion)
	}
	if !almostEqual(imp.Specificity, 1) {
		t.Errorf("specificity = %f, want 1", imp.Specificity)
	}
	if !almostEqual(imp.Feedback, 0.5) {
		t.Errorf("feedback = %f, want 0.5", imp.Feedback)
	}
	want := 1*weightRecency + 0.4*weightEmotion + 1*weightSpecificity + 0.5*weightFeedback
	if !almostEqual(imp.Total, want) {
		t.Errorf("total = %f, want %f", imp.Total, want)
	}
	if imp.Priority != PriorityMedium {
		t.Errorf("priority = %q, want medium", imp.Priority)
	}
}

func TestRecencySteps(t *testing.T) {
	now := time.Now()
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{12 * time.Hour, 1},
		{3 * 24 * time.Hour, 0.8},
		{15 * 24 * time.Hour, 0.5},
		{60 * 24 * time.Hour, 0.3},
		{120 * 24 * time.Hour, 0.1},
	}
	for _, c := range cases {
		ts := now.Add(-c.age)
		rec := Record{CreatedAt: ts, UpdatedAt: ts}
		if got := recencyScore(rec, now); !almostEqual(got, c.want) {
			t.Errorf("age %v: recency = %f, want %f", c.age, got, c.want)
		}
	}
}

func TestRecencyUsesNewestTimestamp(t *testing.T) {
	now := time.Now()
	rec := Record{
		CreatedAt: now.Add(-60 * 24 * time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
	if got := recencyScore(rec, now); !almostEqual(got, 1) {
		t.Errorf("recency = %f, want 1 for a just-updated record", got)
	}
}

func TestFrequencySaturates(t *testing.T) {
	if got := frequencyScore(Record{AccessCount: 5}); !almostEqual(got, 0.5) {
		t.Errorf("access 5: frequency = %f, want 0.5", got)
	}
	if got := frequencyScore(Record{AccessCount: 25}); !almostEqual(got, 1) {
		t.Errorf("access 25: frequency = %f, want 1", got)
	}
}

func TestFeedbackScore(t *testing.T) {
	if got := feedbackScore(Record{}); !almostEqual(got, 0.5) {
		t.Errorf("no feedback: %f, want 0.5", got)
	}
	if got := feedbackScore(Record{PositiveFeedback: 3}); !almostEqual(got, 1) {
		t.Errorf("all positive: %f, want 1", got)
	}
	if got := feedbackScore(Record{NegativeFeedback: 2}); !almostEqual(got, 0) {
		t.Errorf("all negative: %f, want 0", got)
	}
	if got := feedbackScore(Record{PositiveFeedback: 1, NegativeFeedback: 1}); !almostEqual(got, 0.5) {
		t.Errorf("balanced: %f, want 0.5", got)
	}
}

func TestSpecificityPenalizesUnknownKey(t *testing.T) {
	if got := specificityScore(Record{Key: "unknown:x"}); !almostEqual(got, 0) {
		t.Errorf("unknown key: %f, want 0", got)
	}
	if got := specificityScore(Record{Key: "habit:coffee"}); !almostEqual(got, 0.3) {
		t.Errorf("bare key: %f, want 0.3", got)
	}
}
