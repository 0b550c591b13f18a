// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package cache fronts the distributed embedding store. It wraps
// *redis.Client the same way the reference RAG gateway's RAGService wraps
// it for its embedding cache (JSON-encoded float vectors, key prefix, TTL
// on every Set), and adds a bounded-parallel getMany, which the source's
// cache.py does with a fan-out + gather over asyncio.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"

	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/obs"
)

const keyPrefix = "embedding:"

var log = obs.Logger("github.com/yeosa/album-ai-gateway/internal/cache")

// Coordinator is the gateway's only path to the embedding cache. All
// backend calls are funneled through one process-wide semaphore sized at
// construction (default 80) and held for the Coordinator's lifetime, so
// concurrent callers share the same cap on in-flight Redis RPCs rather
// than each getting their own.
type Coordinator struct {
	client *redis.Client
	ttl    int64 // seconds
	sem    chan struct{}
}

// New constructs a Coordinator. ttlSeconds is applied to every Set.
// maxParallel bounds concurrent Redis RPCs issued by GetMany across every
// caller sharing this Coordinator; 0 means the spec default of 80.
func New(client *redis.Client, ttlSeconds int64, maxParallel int) *Coordinator {
	if maxParallel <= 0 {
		maxParallel = 80
	}
	return &Coordinator{client: client, ttl: ttlSeconds, sem: make(chan struct{}, maxParallel)}
}

// Ping verifies connectivity at startup.
func (c *Coordinator) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (c *Coordinator) Close() error {
	return c.client.Close()
}

// Get fetches one embedding. A backend error is reported as a miss rather
// than failed to the caller, per the cache coordinator's contract.
func (c *Coordinator) Get(ctx context.Context, key model.ImageRef) (model.Embedding, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WarnContext(ctx, "cache get failed, treating as miss", "key", key, "error", err)
		}
		return nil, false
	}
	var vec model.Embedding
	if err := json.Unmarshal(raw, &vec); err != nil {
		log.WarnContext(ctx, "cache value corrupt, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return vec, true
}

// Set writes one embedding with the configured TTL. A failure here fails
// the caller: the embedding pipeline surfaces it as a 500.
func (c *Coordinator) Set(ctx context.Context, key model.ImageRef, vec model.Embedding) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("cache: failed to encode embedding for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, time.Duration(c.ttl)*time.Second).Err(); err != nil {
		return fmt.Errorf("cache: failed to set %s: %w", key, err)
	}
	return nil
}

// GetMany fetches a batch of keys, funneling every Redis RPC through the
// Coordinator's shared semaphore. values[i] corresponds to keys[i]; a nil
// entry marks a miss. missing is the subset of keys for which the backend
// returned no value or a recoverable error, in input order.
func (c *Coordinator) GetMany(ctx context.Context, keys []model.ImageRef) (values []model.Embedding, missing []model.ImageRef) {
	values = make([]model.Embedding, len(keys))

	p := pool.New().WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		p.Go(func(ctx context.Context) error {
			select {
			case c.sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-c.sem }()

			vec, ok := c.Get(ctx, key)
			if ok {
				values[i] = vec
			}
			return nil
		})
	}
	_ = p.Wait()

	for i, v := range values {
		if v == nil {
			missing = append(missing, keys[i])
		}
	}
	return values, missing
}
