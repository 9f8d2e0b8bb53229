package vmath

import (
	"math"
	"testing"
)

func TestCosineSimilaritySelf(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0.01}
	got := CosineSimilarity(v, v)
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("expected self-similarity 1, got %f", got)
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 7}
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Error("expected symmetric similarity")
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("expected 0 for orthogonal vectors, got %f", got)
	}
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("expected 0 for zero-norm vector, got %f", got)
	}
}

func TestCosineSimilarityLengthMismatch(t *testing.T) {
	if got := CosineSimilarity([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("expected 0 for mismatched lengths, got %f", got)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(sum))
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("expected zero vector unchanged")
	}
}
