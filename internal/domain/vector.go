package domain

import "math"

// L2Normalize returns a unit-length copy of v and the original norm.
// A zero-norm vector is returned as an all-zero copy with norm 0.
func L2Normalize(v []float32) ([]float32, float64) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return out, 0
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, norm
}

// Dot returns the inner product of two equal-length vectors, accumulated in float64.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
