package memory

import (
	"encoding/json"
	"regexp"
)

// extractionPattern matches user utterances that signal a memory of a
// given type. Order matters: the first matching type wins.
type extractionPattern struct {
	typ Type
	re  *regexp.Regexp
}

var defaultPatterns = []extractionPattern{
	{TypePreference, regexp.MustCompile(`喜欢|偏好|更喜欢|倾向于|想要|希望|不要|讨厌`)},
	{TypeHabit, regexp.MustCompile(`经常|总是|通常|一般|习惯|每次|从来不|偶尔`)},
	{TypeConstraint, regexp.MustCompile(`不能|无法|必须|需要|只要|除非|只有`)},
}

var (
	highPriorityRe = regexp.MustCompile(`必须|不能|绝对|永远`)
	lowPriorityRe  = regexp.MustCompile(`可能|也许|大概|偶尔`)
)

// Extractor mines memory candidates from conversation history with
// regex patterns. It is a thin, swappable policy, not part of the
// engine's algorithmic core.
type Extractor struct {
	patterns []extractionPattern
}

// NewExtractor creates an Extractor with the default pattern set.
func NewExtractor() *Extractor {
	return &Extractor{patterns: defaultPatterns}
}

// Extract pairs each user message with the assistant reply at the same
// position and emits one candidate per matching user message,
// deduplicated by (user_id, key) within the batch.
func (e *Extractor) Extract(messages []Message, userID string) []AddInput {
	if userID == "" {
		userID = DefaultUserID
	}

	var userMsgs, assistantMsgs []string
	for _, m := range messages {
		switch m.Role {
		case "user":
			userMsgs = append(userMsgs, m.Content)
		case "assistant":
			assistantMsgs = append(assistantMsgs, m.Content)
		}
	}

	seen := make(map[string]struct{})
	var out []AddInput
	for i, userText := range userMsgs {
		if userText == "" {
			continue
		}
		assistantText := ""
		if i < len(assistantMsgs) {
			assistantText = assistantMsgs[i]
		}

		for _, p := range e.patterns {
			if !p.re.MatchString(userText) {
				continue
			}
			key := string(p.typ) + ":" + truncateRunes(userText, 20)
			dedup := userID + ":" + key
			if _, dup := seen[dedup]; dup {
				break
			}
			seen[dedup] = struct{}{}

			value, _ := json.Marshal(map[string]string{"raw": userText})
			context, _ := json.Marshal(map[string]string{"answer": assistantText})
			out = append(out, AddInput{
				UserID:         userID,
				Type:           p.typ,
				Key:            key,
				Value:          value,
				SourceQuestion: userText,
				Context:        context,
				Priority:       extractionPriority(userText),
			})
			break
		}
	}
	return out
}

// extractionPriority reads imperative strength off the utterance.
func extractionPriority(text string) Priority {
	if highPriorityRe.MatchString(text) {
		return PriorityHigh
	}
	if lowPriorityRe.MatchString(text) {
		return PriorityLow
	}
	return PriorityMedium
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
