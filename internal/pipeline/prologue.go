// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"

	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/vectormath"
)

// fetchAndNormalize is the prologue shared by every vector pipeline
// (duplicate, category, quality, score): call getMany, and if any key is
// missing, the caller must short-circuit with a 428 carrying the missing
// refs in input order. On success it returns the L2-normalized embedding
// matrix in input order.
func fetchAndNormalize(ctx context.Context, appCtx *Context, refs []model.ImageRef) (matrix [][]float32, missing []model.ImageRef) {
	values, missing := appCtx.Cache.GetMany(ctx, refs)
	if len(missing) > 0 {
		return nil, missing
	}
	return vectormath.NormalizeBatch(values), nil
}

// envelope recovers a panic from fn and converts it into a 500 response,
// replacing the teacher's panic-recovery runtime wrapper with a single
// pipeline-boundary helper: pipeline functions never raise to ingress
// adapters, they always return a Response.
func envelope(taskID string, albumID int64, fn func() model.Response) (resp model.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = model.InternalError(taskID, albumID, nil)
		}
	}()
	return fn()
}
