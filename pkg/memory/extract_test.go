package memory

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExtractPreference(t *testing.T) {
	e := NewExtractor()
	out := e.Extract([]Message{
		{Role: "user", Content: "我喜欢蓝色"},
		{Role: "assistant", Content: "好的，记住了"},
	}, "u1")

	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	c := out[0]
	if c.Type != TypePreference {
		t.Errorf("type = %q, want preference", c.Type)
	}
	if c.UserID != "u1" {
		t.Errorf("user = %q, want u1", c.UserID)
	}
	if c.Key != "preference:我喜欢蓝色" {
		t.Errorf("key = %q", c.Key)
	}
	if c.SourceQuestion != "我喜欢蓝色" {
		t.Errorf("source question = %q", c.SourceQuestion)
	}

	var value map[string]string
	if err := json.Unmarshal(c.Value, &value); err != nil {
		t.Fatalf("value not JSON: %v", err)
	}
	if value["raw"] != "我喜欢蓝色" {
		t.Errorf("value raw = %q", value["raw"])
	}
	var context map[string]string
	if err := json.Unmarshal(c.Context, &context); err != nil {
		t.Fatalf("context not JSON: %v", err)
	}
	if context["answer"] != "好的，记住了" {
		t.Errorf("context answer = %q", context["answer"])
	}
}

func TestExtractFirstMatchingTypeWins(t *testing.T) {
	e := NewExtractor()
	// 喜欢 (preference) and 必须 (constraint) both match; preference
	// patterns run first.
	out := e.Extract([]Message{
		{Role: "user", Content: "我喜欢咖啡但必须少喝"},
	}, "")
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if out[0].Type != TypePreference {
		t.Errorf("type = %q, want preference", out[0].Type)
	}
	if out[0].UserID != DefaultUserID {
		t.Errorf("user = %q, want default", out[0].UserID)
	}
}

func TestExtractPriorities(t *testing.T) {
	e := NewExtractor()
	cases := []struct {
		text string
		want Priority
	}{
		{"我必须每天锻炼", PriorityHigh},
		{"我偶尔喝茶", PriorityLow},
		{"我经常骑车上班", PriorityMedium},
	}
	for _, c := range cases {
		out := e.Extract([]Message{{Role: "user", Content: c.text}}, "u1")
		if len(out) != 1 {
			t.Fatalf("%q: expected 1 candidate, got %d", c.text, len(out))
		}
		if out[0].Priority != c.want {
			t.Errorf("%q: priority = %q, want %q", c.text, out[0].Priority, c.want)
		}
	}
}

func TestExtractDedupsWithinBatch(t *testing.T) {
	e := NewExtractor()
	out := e.Extract([]Message{
		{Role: "user", Content: "我喜欢蓝色"},
		{Role: "assistant", Content: "好的"},
		{Role: "user", Content: "我喜欢蓝色"},
		{Role: "assistant", Content: "已经记住了"},
	}, "u1")
	if len(out) != 1 {
		t.Fatalf("expected dedup to 1 candidate, got %d", len(out))
	}
}

func TestExtractTruncatesLongKeys(t *testing.T) {
	e := NewExtractor()
	long := "我喜欢" + strings.Repeat("很", 30) + "长的句子"
	out := e.Extract([]Message{{Role: "user", Content: long}}, "u1")
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	keyText := strings.TrimPrefix(out[0].Key, "preference:")
	if got := len([]rune(keyText)); got != 20 {
		t.Errorf("key text rune length = %d, want 20", got)
	}
}

func TestExtractIgnoresPlainStatements(t *testing.T) {
	e := NewExtractor()
	out := e.Extract([]Message{
		{Role: "user", Content: "今天天气不错"},
	}, "u1")
	if len(out) != 0 {
		t.Fatalf("expected no candidates, got %d", len(out))
	}
}
