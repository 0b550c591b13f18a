// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/textbank"
)

type countingLoader struct {
	images map[model.ImageRef][]byte
	calls  atomic.Int32
}

func (l *countingLoader) Load(_ context.Context, ref model.ImageRef) ([]byte, error) {
	l.calls.Add(1)
	return l.images[ref], nil
}

func (l *countingLoader) Close() error { return nil }

func flatImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 320, 320))
	for y := 0; y < 320; y++ {
		for x := 0; x < 320; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func checkerboardPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 320, 320))
	for y := 0; y < 320; y++ {
		for x := 0; x < 320; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRunQuality(t *testing.T) {
	t.Run("will return 428", func(t *testing.T) {
		t.Run("without ever loading an image", func(t *testing.T) {
			t.Run("when an embedding is not cached", func(t *testing.T) {
				appCtx := newTestContext(t, nil)
				loader := &countingLoader{images: map[model.ImageRef][]byte{}}
				appCtx.Images = loader

				resp := RunQuality(t.Context(), appCtx, model.QualityRequest{
					TaskID:  "t1",
					AlbumID: 1,
					Images:  []model.ImageRef{"a.jpg"},
				})

				assert.Equal(t, model.StatusEmbeddingRequired, resp.StatusCode)
				assert.Equal(t, int32(0), loader.calls.Load())
			})
		})
	})

	t.Run("will union the CLIP and Laplacian branches", func(t *testing.T) {
		t.Run("flagging images either branch judges low-quality", func(t *testing.T) {
			appCtx := newTestContext(t, nil)
			appCtx.QualityBank = textbank.QualityBank{Fields: []textbank.QualityField{
				{Name: "sharp", Positive: []float32{1, 0}, Negative: []float32{0, 1}},
				{Name: "good", Positive: []float32{1, 0}, Negative: []float32{0, 1}},
			}}

			loader := &countingLoader{images: map[model.ImageRef][]byte{
				"sharp.jpg":   checkerboardPNG(t),
				"blurry.jpg":  flatImagePNG(t),
				"lowclip.jpg": checkerboardPNG(t),
			}}
			appCtx.Images = loader

			seedCache(t, appCtx, map[model.ImageRef][]float32{
				"sharp.jpg":   {1, 0},
				"blurry.jpg":  {1, 0},
				"lowclip.jpg": {0, 1},
			})

			resp := RunQuality(t.Context(), appCtx, model.QualityRequest{
				TaskID:  "t1",
				AlbumID: 1,
				Images:  []model.ImageRef{"sharp.jpg", "blurry.jpg", "lowclip.jpg"},
			})

			require.Equal(t, model.StatusSuccess, resp.StatusCode)
			data, ok := resp.Body.Data.(model.QualityData)
			require.True(t, ok)
			assert.ElementsMatch(t, []model.ImageRef{"blurry.jpg", "lowclip.jpg"}, data.LowQualityImages)
		})
	})
}
