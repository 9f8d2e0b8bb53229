package embedding

import "testing"

func hasToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

func TestTokenizeBasic(t *testing.T) {
	tokens := Tokenize("I like Blue, blue colors!")
	if !hasToken(tokens, "like") {
		t.Errorf("expected token %q in %v", "like", tokens)
	}
	if !hasToken(tokens, "blue") {
		t.Errorf("expected token %q in %v", "blue", tokens)
	}
	// Duplicates collapse.
	count := 0
	for _, tok := range tokens {
		if tok == "blue" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 1 occurrence of blue, got %d", count)
	}
}

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	tokens := Tokenize("the a i of blue")
	if hasToken(tokens, "the") || hasToken(tokens, "of") {
		t.Errorf("expected stop words dropped, got %v", tokens)
	}
	if hasToken(tokens, "a") || hasToken(tokens, "i") {
		t.Errorf("expected single-char tokens dropped, got %v", tokens)
	}
}

func TestTokenizeCJKNgrams(t *testing.T) {
	tokens := Tokenize("我喜欢蓝色")
	// The full run survives as one token plus its 2..4 length n-grams.
	if !hasToken(tokens, "喜欢") {
		t.Errorf("expected bigram 喜欢 in %v", tokens)
	}
	if !hasToken(tokens, "蓝色") {
		t.Errorf("expected bigram 蓝色 in %v", tokens)
	}
	if !hasToken(tokens, "喜欢蓝色") {
		t.Errorf("expected 4-gram 喜欢蓝色 in %v", tokens)
	}
}

func TestTokenizeStripsPunctuation(t *testing.T) {
	tokens := Tokenize("hello,world;foo")
	if !hasToken(tokens, "hello") || !hasToken(tokens, "world") || !hasToken(tokens, "foo") {
		t.Errorf("expected punctuation to split tokens, got %v", tokens)
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if tokens := Tokenize("   "); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %v", tokens)
	}
}
