// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGate_Acquire(t *testing.T) {
	t.Run("will block a second acquirer", func(t *testing.T) {
		t.Run("until the first releases its slot", func(t *testing.T) {
			g := NewGate(1)

			ctx := context.Background()
			assert.NoError(t, g.Acquire(ctx))

			acquired := make(chan struct{})
			go func() {
				_ = g.Acquire(ctx)
				close(acquired)
			}()

			select {
			case <-acquired:
				t.Fatal("second acquire should have blocked")
			case <-time.After(20 * time.Millisecond):
			}

			g.Release()
			<-acquired
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("when the context is cancelled while waiting", func(t *testing.T) {
			g := NewGate(1)
			assert.NoError(t, g.Acquire(context.Background()))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			assert.ErrorIs(t, g.Acquire(ctx), context.Canceled)
		})
	})
}

func TestRunCPU(t *testing.T) {
	t.Run("will return the closure's result", func(t *testing.T) {
		g := New()
		defer g.Close()

		out := RunCPU(g, func() int { return 42 })
		assert.Equal(t, 42, out)
	})
}
