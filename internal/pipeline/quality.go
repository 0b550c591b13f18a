// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/yeosa/album-ai-gateway/internal/concurrency"
	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/quality"
	"github.com/yeosa/album-ai-gateway/internal/textbank"
	"github.com/yeosa/album-ai-gateway/internal/vectormath"
)

const (
	qualitySharpWeight = 0.75
	qualityGoodWeight  = 0.25
)

// RunQuality races two independent low-quality judgments and unions their
// results: a CLIP-IQA branch over cached embeddings, and a Laplacian-
// variance blur test over the raw image bytes. The cache lookup for the
// CLIP branch runs first; a missing embedding short-circuits with 428
// before the Laplacian branch ever loads an image. Once both branches are
// running, only the Laplacian branch can fail; its failure turns the whole
// request into a 500.
func RunQuality(ctx context.Context, appCtx *Context, req model.QualityRequest) model.Response {
	return envelope(req.TaskID, req.AlbumID, func() model.Response {
		if req.TaskID == "" || req.AlbumID == 0 || len(req.Images) == 0 {
			return model.InvalidRequest(req.TaskID, req.AlbumID)
		}

		matrix, missing := fetchAndNormalize(ctx, appCtx, req.Images)
		if len(missing) > 0 {
			return model.EmbeddingRequired(req.TaskID, req.AlbumID, missing)
		}

		sharpField, sharpOk := appCtx.QualityBank.ByName("sharp")
		goodField, goodOk := appCtx.QualityBank.ByName("good")
		if !sharpOk || !goodOk {
			appCtx.Log.ErrorContext(ctx, "quality: quality bank missing required fields")
			return model.InternalError(req.TaskID, req.AlbumID, nil)
		}
		tSharp, tCombined := appCtx.QualityThresholds()

		var clipLow, laplacianLow map[int]bool

		p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
		p.Go(func(ctx context.Context) error {
			clipLow = concurrency.RunCPU(appCtx.Governor, func() map[int]bool {
				return clipLowQualitySet(matrix, sharpField, goodField, tSharp, tCombined)
			})
			return nil
		})
		p.Go(func(ctx context.Context) error {
			low, err := laplacianLowQualitySet(ctx, appCtx, req.Images)
			if err != nil {
				return err
			}
			laplacianLow = low
			return nil
		})

		if err := p.Wait(); err != nil {
			appCtx.Log.ErrorContext(ctx, "quality: laplacian branch failed", "error", err)
			return model.InternalError(req.TaskID, req.AlbumID, nil)
		}

		seen := make(map[int]bool, len(clipLow)+len(laplacianLow))
		for idx := range clipLow {
			seen[idx] = true
		}
		for idx := range laplacianLow {
			seen[idx] = true
		}

		low := make([]model.ImageRef, 0, len(seen))
		for i, ref := range req.Images {
			if seen[i] {
				low = append(low, ref)
			}
		}

		return model.NewResponse(req.TaskID, req.AlbumID, model.StatusSuccess, model.QualityData{LowQualityImages: low})
	})
}

// clipLowQualitySet scores every row against the sharp and good prompt
// pairs: score = softmax([positive, negative])[0], combined =
// 0.75*sharp + 0.25*good, low if sharp or combined falls below threshold.
func clipLowQualitySet(matrix [][]float32, sharp, good textbank.QualityField, tSharp, tCombined float32) map[int]bool {
	low := make(map[int]bool)
	for i, vec := range matrix {
		sharpScore := vectormath.Softmax2(vectormath.Dot(vec, sharp.Positive), vectormath.Dot(vec, sharp.Negative))
		goodScore := vectormath.Softmax2(vectormath.Dot(vec, good.Positive), vectormath.Dot(vec, good.Negative))
		combined := qualitySharpWeight*sharpScore + qualityGoodWeight*goodScore
		if sharpScore < tSharp || combined < tCombined {
			low[i] = true
		}
	}
	return low
}

type laplacianResult struct {
	variance float64
	err      error
}

// laplacianLowQualitySet loads and scores each image in input order,
// bailing out before the next image as soon as ctx is cancelled.
func laplacianLowQualitySet(ctx context.Context, appCtx *Context, images []model.ImageRef) (map[int]bool, error) {
	low := make(map[int]bool)
	for i, ref := range images {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		raw, err := appCtx.Images.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("quality: failed to load image %q: %w", ref, err)
		}

		res := concurrency.RunCPU(appCtx.Governor, func() laplacianResult {
			v, err := quality.LaplacianVariance(raw)
			return laplacianResult{variance: v, err: err}
		})
		if res.err != nil {
			return nil, fmt.Errorf("quality: failed to score image %q: %w", ref, res.err)
		}
		if quality.IsBlurry(res.variance) {
			low[i] = true
		}
	}
	return low, nil
}
