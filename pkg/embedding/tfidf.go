// Package embedding maps text to fixed-width dense vectors without any
// external model. It builds a TF-IDF vocabulary incrementally from the
// documents it sees and folds token weights into the vector by
// hashing. No network, no model files, deterministic within a process.
package embedding

import (
	"hash/fnv"
	"math"
	"sync"

	"github.com/engramkit/engram/pkg/vmath"
)

// DefaultDim is the default embedding width.
const DefaultDim = 768

// defaultIDF is the weight assigned to tokens never seen by
// BuildVocabulary. Keeps queries functional before any corpus exists.
const defaultIDF = 0.5

// TFIDF is a hashing-based TF-IDF embedder.
//
// The vocabulary and idf table only grow; an existing entry is never
// overwritten, so historical vectors stay roughly comparable as new
// documents arrive. State is process-scoped and not persisted: vectors
// recomputed after a restart are not guaranteed bit-identical.
type TFIDF struct {
	mu    sync.Mutex
	vocab map[string]int
	idf   map[string]float64
	dim   int
}

// NewTFIDF creates an embedder producing vectors of the given width.
// dim <= 0 selects DefaultDim.
func NewTFIDF(dim int) *TFIDF {
	if dim <= 0 {
		dim = DefaultDim
	}
	return &TFIDF{
		vocab: make(map[string]int),
		idf:   make(map[string]float64),
		dim:   dim,
	}
}

// Dim returns the embedding width.
func (e *TFIDF) Dim() int { return e.dim }

// BuildVocabulary folds a document corpus into the vocabulary and idf
// table. Idempotent per token: a token already known keeps its weight
// and index.
func (e *TFIDF) BuildVocabulary(documents []string) {
	docCount := len(documents)
	if docCount == 0 {
		return
	}

	df := make(map[string]int)
	for _, doc := range documents {
		for _, token := range Tokenize(doc) {
			df[token]++
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for token, count := range df {
		if _, ok := e.idf[token]; !ok {
			e.idf[token] = math.Log(float64(docCount)/float64(count) + 1)
		}
	}
	for token := range e.idf {
		if _, ok := e.vocab[token]; !ok {
			e.vocab[token] = len(e.vocab)
		}
	}
}

// Transform embeds a single text against the current vocabulary.
// An input with no tokens yields the zero vector.
func (e *TFIDF) Transform(text string) []float32 {
	vector := make([]float32, e.dim)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return vector
	}

	tf := make(map[string]int, len(tokens))
	for _, token := range tokens {
		tf[token]++
	}

	e.mu.Lock()
	for token, count := range tf {
		idf, ok := e.idf[token]
		if !ok {
			idf = defaultIDF
		}
		weight := float64(count) / float64(len(tokens)) * idf
		idx := hashToken(token) % uint32(e.dim)
		// Collisions sum; L2 normalization below washes out the scale.
		vector[idx] += float32(weight)
	}
	e.mu.Unlock()

	vmath.Normalize(vector)
	return vector
}

// Embed embeds a batch of texts. A batch of more than one text, or any
// call made while the vocabulary is still empty, first folds the batch
// into the vocabulary; single-text calls otherwise reuse existing
// state.
func (e *TFIDF) Embed(texts []string) [][]float32 {
	e.mu.Lock()
	empty := len(e.vocab) == 0
	e.mu.Unlock()

	if len(texts) > 1 || empty {
		e.BuildVocabulary(texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.Transform(text)
	}
	return vectors
}

// EmbedQuery embeds a single query text.
func (e *TFIDF) EmbedQuery(query string) []float32 {
	return e.Embed([]string{query})[0]
}

// VocabularySize returns the number of known tokens.
func (e *TFIDF) VocabularySize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.vocab)
}

// Reset discards all vocabulary and idf state. Intended for test
// isolation.
func (e *TFIDF) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocab = make(map[string]int)
	e.idf = make(map[string]float64)
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}
