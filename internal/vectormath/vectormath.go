// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vectormath implements the vector transforms the pipelines need —
// L2 normalization, cosine distance, softmax, and a linear regressor
// apply — by hand over raw []float32, the same style used throughout the
// pack's own embedding producers for unit-normalizing a vector (no
// third-party numerics library appears anywhere in the retrieved corpus).
package vectormath

import "math"

// Normalize returns the L2-unit vector of v. The zero vector is returned
// unchanged rather than dividing by zero.
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// NormalizeBatch normalizes every row of X independently.
func NormalizeBatch(x [][]float32) [][]float32 {
	out := make([][]float32, len(x))
	for i, row := range x {
		out[i] = Normalize(row)
	}
	return out
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// MatMulTranspose computes X·Yᵀ for row-major matrices X (n×d) and Y
// (m×d), returning an n×m matrix. Used for the cosine-distance Gram
// matrix (duplicate pipeline); the category pipeline scores with
// MeanSimilarity instead.
func MatMulTranspose(x, y [][]float32) [][]float32 {
	out := make([][]float32, len(x))
	for i, xi := range x {
		row := make([]float32, len(y))
		for j, yj := range y {
			row[j] = Dot(xi, yj)
		}
		out[i] = row
	}
	return out
}

// CosineDistanceMatrix builds D = 1 - X·Xᵀ over L2-normalized rows,
// clamped to [0, +inf). Running this twice over the same pre-normalized
// input is bit-for-bit identical since Dot and the clamp are both
// deterministic floating-point operations with no accumulation order
// dependent on anything but input order.
func CosineDistanceMatrix(x [][]float32) [][]float32 {
	sim := MatMulTranspose(x, x)
	out := make([][]float32, len(sim))
	for i, row := range sim {
		drow := make([]float32, len(row))
		for j, s := range row {
			d := 1 - s
			if d < 0 {
				d = 0
			}
			drow[j] = d
		}
		out[i] = drow
	}
	return out
}

// Softmax2 returns the softmax of a 2-element logit pair [a, b],
// returning only the first component — the form the quality pipeline
// needs for softmax([pos, neg])[0].
func Softmax2(a, b float32) float32 {
	// shift by max for numerical stability
	m := a
	if b > m {
		m = b
	}
	ea := math.Exp(float64(a - m))
	eb := math.Exp(float64(b - m))
	return float32(ea / (ea + eb))
}

// MeanSimilarity returns the mean of image·prompt over a set of prompt
// vectors for a single image row, the per-category scoring rule in the
// category pipeline (mean of P=4 prompt similarities).
func MeanSimilarity(image []float32, prompts [][]float32) float32 {
	if len(prompts) == 0 {
		return 0
	}
	var sum float32
	for _, p := range prompts {
		sum += Dot(image, p)
	}
	return sum / float32(len(prompts))
}

// LinearRegressor is a single D->1 linear layer: score = w·x + b.
type LinearRegressor struct {
	Weights []float32
	Bias    float32
}

// Apply scores a single normalized embedding.
func (r LinearRegressor) Apply(x []float32) float32 {
	return Dot(r.Weights, x) + r.Bias
}

// ApplyBatch scores every row of x.
func (r LinearRegressor) ApplyBatch(x [][]float32) []float32 {
	out := make([]float32, len(x))
	for i, row := range x {
		out[i] = r.Apply(row)
	}
	return out
}
