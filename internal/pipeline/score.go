// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"

	"github.com/yeosa/album-ai-gateway/internal/concurrency"
	"github.com/yeosa/album-ai-gateway/internal/model"
)

// RunScore applies the aesthetic regressor to every category bucket's
// cached embeddings independently, preserving each bucket's input order.
// A missing embedding anywhere across all buckets fails the whole request
// with 428, carrying the union of missing refs in first-seen order.
func RunScore(ctx context.Context, appCtx *Context, req model.ScoreRequest) model.Response {
	return envelope(req.TaskID, req.AlbumID, func() model.Response {
		if req.TaskID == "" || req.AlbumID == 0 || len(req.Categories) == 0 {
			return model.InvalidRequest(req.TaskID, req.AlbumID)
		}
		for _, cat := range req.Categories {
			if len(cat.Images) == 0 {
				return model.InvalidRequest(req.TaskID, req.AlbumID)
			}
		}

		matrices := make([][][]float32, len(req.Categories))
		var allMissing []model.ImageRef
		seenMissing := map[model.ImageRef]bool{}
		for i, cat := range req.Categories {
			matrix, missing := fetchAndNormalize(ctx, appCtx, cat.Images)
			if len(missing) > 0 {
				for _, ref := range missing {
					if !seenMissing[ref] {
						seenMissing[ref] = true
						allMissing = append(allMissing, ref)
					}
				}
				continue
			}
			matrices[i] = matrix
		}
		if len(allMissing) > 0 {
			return model.EmbeddingRequired(req.TaskID, req.AlbumID, allMissing)
		}

		results := concurrency.RunCPU(appCtx.Governor, func() []model.ScoreCategoryResult {
			out := make([]model.ScoreCategoryResult, len(req.Categories))
			for i, cat := range req.Categories {
				scores := appCtx.Regressor.ApplyBatch(matrices[i])
				imgScores := make([]model.ImageScore, len(cat.Images))
				for j, ref := range cat.Images {
					imgScores[j] = model.ImageScore{Image: ref, Score: scores[j]}
				}
				out[i] = model.ScoreCategoryResult{Category: cat.Category, Images: imgScores}
			}
			return out
		})

		return model.NewResponse(req.TaskID, req.AlbumID, model.StatusSuccess, model.ScoreData{Categories: results})
	})
}
