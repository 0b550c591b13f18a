// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package quality implements the CPU-only Laplacian blur test that runs
// alongside the CLIP-IQA branch in the quality pipeline. Decoding uses the
// standard image package; grayscale conversion and resizing use
// github.com/disintegration/imaging, the one general-purpose
// Go image-transform library present anywhere in the retrieved corpus; no
// example wires an OpenCV-style Laplacian operator, so the 3x3 kernel
// convolution and variance are hand-rolled over the resized grayscale
// pixels, the same texture as this gateway's other hand-rolled numerics
// (see internal/vectormath).
package quality

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// BlurVarianceThreshold is the spec-mandated cutoff: images scoring below
// this variance are judged blurry.
const BlurVarianceThreshold = 80.0

// LaplacianVariance decodes raw image bytes, converts to grayscale,
// resizes so the longer side is 300px, and returns the variance of the
// image's discrete Laplacian — the standard "variance of Laplacian" blur
// metric.
func LaplacianVariance(raw []byte) (float64, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}

	gray := imaging.Grayscale(img)

	var resized *image.NRGBA
	bounds := gray.Bounds()
	if bounds.Dx() >= bounds.Dy() {
		resized = imaging.Resize(gray, 300, 0, imaging.Lanczos)
	} else {
		resized = imaging.Resize(gray, 0, 300, imaging.Lanczos)
	}

	return laplacianVariance(resized), nil
}

// laplacianVariance applies the standard 4-neighbor discrete Laplacian
// kernel [[0,1,0],[1,-4,1],[0,1,0]] to every interior pixel and returns
// the variance of the resulting response.
func laplacianVariance(img *image.NRGBA) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	at := func(x, y int) float64 {
		i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
		return float64(img.Pix[i])
	}

	var (
		sum   float64
		sumSq float64
		count int
	)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := at(x, y-1) + at(x, y+1) + at(x-1, y) + at(x+1, y) - 4*at(x, y)
			sum += lap
			sumSq += lap * lap
			count++
		}
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}

// IsBlurry reports whether the variance falls below the blur threshold.
func IsBlurry(variance float64) bool {
	return variance < BlurVarianceThreshold
}
