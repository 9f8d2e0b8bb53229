package embedding

import (
	"strings"
	"unicode"
)

// Tokenize normalizes text and returns its unique tokens.
//
// The text is lower-cased, every rune that is not a letter, digit, or
// whitespace is replaced by a space, and the result is split on
// whitespace. Tokens of length <= 1 and stop words are dropped. For any
// token containing CJK runes, all contiguous character n-grams of
// length 2..min(len,4) are emitted as additional tokens, closing the
// gap left by the absence of word boundaries in CJK text.
func Tokenize(text string) []string {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	seen := make(map[string]struct{})
	var tokens []string
	add := func(tok string) {
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, word := range strings.Fields(normalized) {
		runes := []rune(word)
		if len(runes) <= 1 || IsStopWord(word) {
			continue
		}
		add(word)
		if !containsCJK(runes) {
			continue
		}
		maxLen := len(runes)
		if maxLen > 4 {
			maxLen = 4
		}
		for n := 2; n <= maxLen; n++ {
			for i := 0; i+n <= len(runes); i++ {
				gram := string(runes[i : i+n])
				if !IsStopWord(gram) {
					add(gram)
				}
			}
		}
	}
	return tokens
}

// containsCJK reports whether any rune falls in the CJK Unified
// Ideographs block.
func containsCJK(runes []rune) bool {
	for _, r := range runes {
		if r >= 0x4e00 && r <= 0x9fa5 {
			return true
		}
	}
	return false
}
