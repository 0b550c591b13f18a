// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"

	"github.com/yeosa/album-ai-gateway/internal/concurrency"
	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/vectormath"
)

const (
	duplicateEps        = 0.1
	duplicateMinSamples = 2
)

// RunDuplicate clusters near-identical images by cosine-distance DBSCAN
// over cached, normalized embeddings. Clusters exclude the noise label
// and preserve insertion order of first-seen label; within a cluster,
// input order is preserved.
func RunDuplicate(ctx context.Context, appCtx *Context, req model.DuplicateRequest) model.Response {
	return envelope(req.TaskID, req.AlbumID, func() model.Response {
		if req.TaskID == "" || req.AlbumID == 0 || len(req.Images) == 0 {
			return model.InvalidRequest(req.TaskID, req.AlbumID)
		}

		matrix, missing := fetchAndNormalize(ctx, appCtx, req.Images)
		if len(missing) > 0 {
			return model.EmbeddingRequired(req.TaskID, req.AlbumID, missing)
		}

		labels := concurrency.RunCPU(appCtx.Governor, func() []int {
			dist := vectormath.CosineDistanceMatrix(matrix)
			return vectormath.DBSCAN(dist, duplicateEps, duplicateMinSamples)
		})

		clusterIdxs := vectormath.ClustersInInsertionOrder(labels)
		groups := make([]model.DuplicateCluster, 0, len(clusterIdxs))
		for _, idxs := range clusterIdxs {
			cluster := make(model.DuplicateCluster, len(idxs))
			for i, idx := range idxs {
				cluster[i] = req.Images[idx]
			}
			groups = append(groups, cluster)
		}

		appCtx.Log.InfoContext(ctx, "duplicate: clustered",
			"loaded_images", len(req.Images),
			"duplicate_groups", len(groups),
			"total_duplicates", sumLens(groups))

		return model.NewResponse(req.TaskID, req.AlbumID, model.StatusSuccess, model.DuplicateData{DuplicateGroups: groups})
	})
}

func sumLens(groups []model.DuplicateCluster) int {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	return n
}
