package embedding

import "strings"

// stopWords is the fixed mixed Chinese/English stop-word set applied
// during tokenization.
var stopWords = func() map[string]struct{} {
	words := []string{
		"的", "了", "在", "是", "我", "有", "和", "就", "不", "人", "都", "一", "一个",
		"上", "也", "很", "到", "说", "要", "去", "你", "会", "着", "没有", "看", "好",
		"自己", "这", "那", "他", "她", "它", "们", "这个", "那个", "什么", "怎么",
		"如何", "为什么", "哪", "哪个", "哪里", "多少", "几", "可以", "能", "能够",
		"应该", "需要", "想", "想要", "希望", "让", "把", "被", "给", "跟",
		"与", "及", "或", "但", "但是", "然而", "所以", "因此", "因为", "如果",
		"虽然", "而", "而且", "并且", "或者", "还是", "只是", "不过", "然后",
		"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "must", "shall", "can", "need", "dare",
		"to", "of", "in", "for", "on", "with", "at", "by", "from", "as",
		"into", "through", "during", "before", "after", "above", "below",
		"between", "under", "again", "further", "then", "once", "here",
		"there", "when", "where", "why", "how", "all", "each", "few",
		"more", "most", "other", "some", "such", "no", "nor", "not", "only",
		"own", "same", "so", "than", "too", "very", "just", "also", "now",
		"and", "or", "but", "if", "because", "while", "although", "though",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopWord reports whether the word is in the stop-word set.
// Matching is case-insensitive.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}
