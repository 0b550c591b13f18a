// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/vectormath"
)

func TestRunScore(t *testing.T) {
	t.Run("will score each category bucket independently", func(t *testing.T) {
		t.Run("preserving each bucket's input order", func(t *testing.T) {
			appCtx := newTestContext(t, nil)
			appCtx.Regressor = vectormath.LinearRegressor{Weights: []float32{1, 0}, Bias: 0}
			seedCache(t, appCtx, map[model.ImageRef][]float32{
				"a.jpg": {1, 0},
				"b.jpg": {0, 1},
				"c.jpg": {0.5, 0.5},
			})

			resp := RunScore(t.Context(), appCtx, model.ScoreRequest{
				TaskID:  "t1",
				AlbumID: 1,
				Categories: []model.ScoreCategoryInput{
					{Category: "beach", Images: []model.ImageRef{"a.jpg", "b.jpg"}},
					{Category: "city", Images: []model.ImageRef{"c.jpg"}},
				},
			})

			require.Equal(t, model.StatusSuccess, resp.StatusCode)
			data, ok := resp.Body.Data.(model.ScoreData)
			require.True(t, ok)
			require.Len(t, data.Categories, 2)
			assert.Equal(t, "beach", data.Categories[0].Category)
			assert.Equal(t, model.ImageRef("a.jpg"), data.Categories[0].Images[0].Image)
			assert.Equal(t, model.ImageRef("b.jpg"), data.Categories[0].Images[1].Image)
		})
	})

	t.Run("will return 428", func(t *testing.T) {
		t.Run("when any bucket references an uncached image", func(t *testing.T) {
			appCtx := newTestContext(t, nil)
			resp := RunScore(t.Context(), appCtx, model.ScoreRequest{
				TaskID:  "t1",
				AlbumID: 1,
				Categories: []model.ScoreCategoryInput{
					{Category: "beach", Images: []model.ImageRef{"missing.jpg"}},
				},
			})
			assert.Equal(t, model.StatusEmbeddingRequired, resp.StatusCode)
		})
	})
}
