// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeosa/album-ai-gateway/internal/model"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, 3600, 0)
}

func TestCoordinator_GetSet(t *testing.T) {
	t.Run("will return a miss", func(t *testing.T) {
		t.Run("for a key that was never set", func(t *testing.T) {
			c := newTestCoordinator(t)
			_, ok := c.Get(context.Background(), "missing.jpg")
			assert.False(t, ok)
		})
	})

	t.Run("will round-trip an embedding", func(t *testing.T) {
		t.Run("through Set then Get", func(t *testing.T) {
			c := newTestCoordinator(t)
			ctx := context.Background()

			vec := model.Embedding{0.1, 0.2, 0.3}
			require.NoError(t, c.Set(ctx, "a.jpg", vec))

			out, ok := c.Get(ctx, "a.jpg")
			require.True(t, ok)
			assert.Equal(t, vec, out)
		})
	})
}

func TestCoordinator_GetMany(t *testing.T) {
	t.Run("will preserve input order", func(t *testing.T) {
		t.Run("and report every uncached key as missing", func(t *testing.T) {
			c := newTestCoordinator(t)
			ctx := context.Background()

			require.NoError(t, c.Set(ctx, "a.jpg", model.Embedding{1}))
			require.NoError(t, c.Set(ctx, "c.jpg", model.Embedding{3}))

			values, missing := c.GetMany(ctx, []model.ImageRef{"a.jpg", "b.jpg", "c.jpg"})

			assert.Equal(t, model.Embedding{1}, values[0])
			assert.Nil(t, values[1])
			assert.Equal(t, model.Embedding{3}, values[2])
			assert.Equal(t, []model.ImageRef{"b.jpg"}, missing)
		})
	})

	t.Run("will report no missing keys", func(t *testing.T) {
		t.Run("when every key is cached", func(t *testing.T) {
			c := newTestCoordinator(t)
			ctx := context.Background()
			require.NoError(t, c.Set(ctx, "a.jpg", model.Embedding{1}))

			_, missing := c.GetMany(ctx, []model.ImageRef{"a.jpg"})
			assert.Empty(t, missing)
		})
	})
}
