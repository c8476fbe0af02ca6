// Package embedding provides text embedders and shared vector math.
package embedding

import "math"

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Normalize scales v to unit L2 norm in place and returns it. Zero vectors
// are returned unchanged. With unit vectors the index's inner-product scores
// are cosine similarities.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
