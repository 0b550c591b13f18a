// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"

	"github.com/yeosa/album-ai-gateway/internal/model"
)

// RunEmbedding delegates to the GPU client, writes every returned
// (ImageRef, vector) to the cache, and reports any input ref the GPU
// response did not cover as invalid_images. A cache write failure fails
// the whole pipeline with 500, listing the refs still unwritten.
func RunEmbedding(ctx context.Context, appCtx *Context, req model.EmbeddingRequest) model.Response {
	return envelope(req.TaskID, req.AlbumID, func() model.Response {
		if req.TaskID == "" || req.AlbumID == 0 || len(req.Images) == 0 {
			return model.InvalidRequest(req.TaskID, req.AlbumID)
		}

		vectors, err := appCtx.GPU.Embed(ctx, req.Images)
		if err != nil {
			appCtx.Log.ErrorContext(ctx, "embedding: gpu call failed", "error", err, "taskId", req.TaskID)
			return model.InternalError(req.TaskID, req.AlbumID, nil)
		}

		var invalid []model.ImageRef
		var failedWrites []model.ImageRef
		for _, ref := range req.Images {
			vec, ok := vectors[ref]
			if !ok {
				invalid = append(invalid, ref)
				continue
			}
			if err := appCtx.Cache.Set(ctx, ref, vec); err != nil {
				appCtx.Log.ErrorContext(ctx, "embedding: cache write failed", "error", err, "ref", ref)
				failedWrites = append(failedWrites, ref)
			}
		}

		if len(failedWrites) > 0 {
			return model.InternalError(req.TaskID, req.AlbumID, failedWrites)
		}

		return model.NewResponse(req.TaskID, req.AlbumID, model.StatusSuccess, invalid)
	})
}
