// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"

	"github.com/yeosa/album-ai-gateway/internal/model"
)

// RunPeople delegates clustering entirely to the GPU backend and passes
// its result through unchanged: no cache lookup, no local post-processing.
func RunPeople(ctx context.Context, appCtx *Context, req model.PeopleRequest) model.Response {
	return envelope(req.TaskID, req.AlbumID, func() model.Response {
		if req.TaskID == "" || req.AlbumID == 0 || len(req.Images) == 0 {
			return model.InvalidRequest(req.TaskID, req.AlbumID)
		}

		clusters, err := appCtx.GPU.ClusterPeople(ctx, req.Images)
		if err != nil {
			appCtx.Log.ErrorContext(ctx, "people: gpu call failed", "error", err, "taskId", req.TaskID)
			return model.InternalError(req.TaskID, req.AlbumID, nil)
		}

		return model.NewResponse(req.TaskID, req.AlbumID, model.StatusSuccess, model.PeopleData{Clusters: clusters})
	})
}
