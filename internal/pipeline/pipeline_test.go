// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/yeosa/album-ai-gateway/internal/cache"
	"github.com/yeosa/album-ai-gateway/internal/concurrency"
	"github.com/yeosa/album-ai-gateway/internal/config"
	"github.com/yeosa/album-ai-gateway/internal/gpuclient"
	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/textbank"
)

type fakeLoader struct {
	images map[model.ImageRef][]byte
}

func (l *fakeLoader) Load(_ context.Context, ref model.ImageRef) ([]byte, error) {
	return l.images[ref], nil
}

func (l *fakeLoader) Close() error { return nil }

// newTestContext builds a real *Context backed by test doubles: a
// miniredis-backed cache, an httptest GPU server driven by gpuHandler
// (nil means no GPU calls are expected), and an in-memory image loader.
func newTestContext(t *testing.T, gpuHandler http.HandlerFunc) *Context {
	t.Helper()

	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	redisClient := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	cacheCoord := cache.New(redisClient, 3600, 0)

	var gpuBaseURL string
	if gpuHandler != nil {
		ts := httptest.NewServer(gpuHandler)
		t.Cleanup(ts.Close)
		gpuBaseURL = ts.URL
	}

	governor := concurrency.New()
	t.Cleanup(governor.Close)

	return &Context{
		Cache:        cacheCoord,
		GPU:          gpuclient.New(gpuBaseURL),
		Images:       &fakeLoader{images: map[model.ImageRef][]byte{}},
		CategoryBank: textbank.CategoryBank{},
		QualityBank:  textbank.QualityBank{},
		Governor:     governor,
		ModelName:    config.ModelViTB32,
		Log:          slog.Default(),
	}
}

func seedCache(t *testing.T, appCtx *Context, vectors map[model.ImageRef][]float32) {
	t.Helper()
	for ref, vec := range vectors {
		require.NoError(t, appCtx.Cache.Set(context.Background(), ref, vec))
	}
}

func jsonHandler(t *testing.T, v any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(v)
	}
}
