// Package utils provides shared utilities for vector math, text, and logging.
package utils

import "math"

// normEpsilon is the threshold below which a vector is treated as zero and
// normalization is skipped to avoid division by (near) zero.
const normEpsilon = 1e-12

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// Vectors with norm <= epsilon are left unchanged.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm <= normEpsilon {
		return
	}
	inv := float32(1.0 / norm)
	for i := range x {
		x[i] *= inv
	}
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of two vectors. For unit-normalized vectors
// this equals cosine similarity. Mismatched lengths yield 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Distance returns the Euclidean distance between two vectors.
// Mismatched lengths yield +Inf.
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
