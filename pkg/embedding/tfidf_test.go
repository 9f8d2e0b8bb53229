package embedding

import (
	"math"
	"testing"

	"github.com/engramkit/engram/pkg/vmath"
)

func TestTransformUnitNorm(t *testing.T) {
	e := NewTFIDF(64)
	e.BuildVocabulary([]string{"user prefers blue colors", "user dislikes red"})

	vec := e.Transform("user prefers blue")
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(sum))
	}
}

func TestTransformEmptyIsZeroVector(t *testing.T) {
	e := NewTFIDF(32)
	vec := e.Transform("")
	if len(vec) != 32 {
		t.Fatalf("expected dim 32, got %d", len(vec))
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector, index %d = %f", i, v)
		}
	}
}

func TestBuildVocabularyMonotonic(t *testing.T) {
	e := NewTFIDF(64)
	e.BuildVocabulary([]string{"blue colors everywhere"})
	first := e.VocabularySize()
	if first == 0 {
		t.Fatal("expected non-empty vocabulary")
	}

	// Rebuilding with the same corpus must not shrink or reassign.
	e.BuildVocabulary([]string{"blue colors everywhere"})
	if e.VocabularySize() != first {
		t.Errorf("expected vocabulary size %d, got %d", first, e.VocabularySize())
	}

	e.BuildVocabulary([]string{"green plants growing"})
	if e.VocabularySize() <= first {
		t.Errorf("expected vocabulary to grow past %d, got %d", first, e.VocabularySize())
	}
}

func TestEmbedBatchBuildsVocabulary(t *testing.T) {
	e := NewTFIDF(64)
	vecs := e.Embed([]string{"我喜欢蓝色", "I like blue"})
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if e.VocabularySize() == 0 {
		t.Error("expected batch embed to build vocabulary")
	}

	// Similar texts land closer than dissimilar ones.
	query := e.EmbedQuery("蓝色")
	simCJK := vmath.CosineSimilarity(query, vecs[0])
	simEN := vmath.CosineSimilarity(query, vecs[1])
	if simCJK <= simEN {
		t.Errorf("expected 蓝色 closer to 我喜欢蓝色 (%f) than to english text (%f)", simCJK, simEN)
	}
}

func TestEmbedSingleOnEmptyVocabularyStillWorks(t *testing.T) {
	e := NewTFIDF(64)
	vec := e.EmbedQuery("favorite color blue")
	var nonzero bool
	for _, v := range vec {
		if v != 0 {
			nonzero = true
			break
		}
	}
	if !nonzero {
		t.Error("expected non-zero vector from first single-text embed")
	}
}

func TestReset(t *testing.T) {
	e := NewTFIDF(64)
	e.BuildVocabulary([]string{"blue colors everywhere"})
	e.Reset()
	if e.VocabularySize() != 0 {
		t.Errorf("expected empty vocabulary after reset, got %d", e.VocabularySize())
	}
}
