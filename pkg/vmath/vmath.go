// Package vmath provides the small amount of vector math the memory
// engine needs: cosine similarity and L2 normalization.
package vmath

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero-norm vectors yield 0, never NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance returns 1 - CosineSimilarity(a, b).
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// Normalize scales v to unit L2 norm in place. A zero vector is left
// unchanged.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
