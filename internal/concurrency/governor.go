// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package concurrency bundles the process-wide concurrency primitives:
// a bounded CPU worker pool for the vector-math transforms, and one
// bounded gate per operation for the HTTP ingress adapter. It is built
// once in the lifecycle manager and threaded through the explicit
// application-context struct rather than held as a process global,
// mirroring the teacher's consistent use of sourcegraph/conc/pool for
// bounded fan-out (internal/kafka's per-partition dispatch uses the same
// package).
package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// DefaultCPUWorkers is the default size of the shared CPU-bound transform
// pool (DBSCAN, category similarity, dual-threshold scoring, Laplacian).
const DefaultCPUWorkers = 8

// Gate bounds concurrent in-flight operations of one kind.
type Gate struct {
	sem chan struct{}
}

// NewGate constructs a Gate allowing up to n concurrent holders.
func NewGate(n int) *Gate {
	if n <= 0 {
		n = 1
	}
	return &Gate{sem: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (g *Gate) Release() {
	<-g.sem
}

// Governor holds the process-wide CPU pool and the per-operation HTTP
// ingress gates.
type Governor struct {
	cpu *pool.ContextPool

	Embedding *Gate
	Category  *Gate
	Duplicate *Gate
	Quality   *Gate
	Score     *Gate
	People    *Gate
}

// New constructs a Governor with the spec-default gate sizes: 4 for
// embedding, 5 for every other operation.
func New() *Governor {
	return &Governor{
		cpu:       pool.New().WithMaxGoroutines(DefaultCPUWorkers).WithContext(context.Background()),
		Embedding: NewGate(4),
		Category:  NewGate(5),
		Duplicate: NewGate(5),
		Quality:   NewGate(5),
		Score:     NewGate(5),
		People:    NewGate(5),
	}
}

// Close waits for any in-flight CPU tasks to finish. HTTP client
// cancellation is not propagated here by design: in-flight CPU tasks run
// to completion even if their originating request was cancelled.
func (g *Governor) Close() {
	_ = g.cpu.Wait()
}

// RunCPU dispatches a CPU-bound transform onto the shared worker pool and
// blocks until it completes, returning its result. This is the Go mapping
// of the source's run_in_executor(None, fn) suspension point: the calling
// goroutine parks while the pool runs fn on one of its fixed workers.
func RunCPU[T any](g *Governor, fn func() T) T {
	resultCh := make(chan T, 1)
	g.cpu.Go(func(context.Context) error {
		resultCh <- fn()
		return nil
	})
	return <-resultCh
}
