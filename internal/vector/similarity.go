// Package vector provides similarity helpers for embedding vectors.
package vector

import (
	"math"

	"github.com/hyperjump/nursesim/internal/models"
)

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
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

// Cosine returns (a·b)/(|a||b|), clamped to [-1, 1]. It is 0 when either norm is 0.
// Vectors of different length are rejected with models.ErrInvalidInput.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, models.InvalidInputf("vector length mismatch: %d != %d", len(a), len(b))
	}
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := InnerProduct(a, b) / (na * nb)
	return math.Max(-1, math.Min(1, sim)), nil
}

// Validate rejects empty vectors and vectors holding NaN or Inf.
func Validate(x []float32) error {
	if len(x) == 0 {
		return models.InvalidInputf("empty vector")
	}
	for i, v := range x {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return models.InvalidInputf("vector component %d is not finite", i)
		}
	}
	return nil
}
