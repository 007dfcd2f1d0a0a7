// Package vector provides cosine similarity and brute-force ranking over the embedding store.
package vector

import (
	"fmt"
	"math"

	"github.com/hyperjump/kioku/internal/models"
)

// CosineSimilarity returns dot(a, b) / (|a| * |b|), clamped to [-1, 1].
// Vectors of different length are a caller bug and yield ErrDimensionMismatch.
// If either vector has zero magnitude the similarity is undefined and NaN is returned;
// callers must treat NaN as "not similar".
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", models.ErrDimensionMismatch, len(a), len(b))
	}
	normA, normB := L2Norm(a), L2Norm(b)
	if normA == 0 || normB == 0 {
		return math.NaN(), nil
	}
	sim := InnerProduct(a, b) / (normA * normB)
	return math.Max(-1, math.Min(1, sim)), nil
}

// InnerProduct returns the inner product of two equal-length vectors, accumulated in float64.
func InnerProduct(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
