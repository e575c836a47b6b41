// Package workers runs data-parallel work over index ranges on a bounded
// pool of goroutines. Each call fans out, then blocks until every chunk has
// finished, which gives the joins their per-phase barrier.
package workers

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Count resolves a configured worker count, where zero or less means one
// worker per available CPU.
func Count(configured int) int {
	if configured > 0 {
		return configured
	}
	return runtime.GOMAXPROCS(0)
}

// ForEachChunk splits [0, n) into contiguous chunks of n/workers+1 items and
// calls fn once per chunk, at most workers at a time. It returns the first
// error from fn, or ctx's error if the context ends before all chunks ran.
func ForEachChunk(ctx context.Context, n, workers int, fn func(ctx context.Context, start, end int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	workers = Count(workers)
	chunkLen := n/workers + 1

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n; start += chunkLen {
		end := min(start+chunkLen, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Map applies fn to every index in [0, n) in parallel and collects the
// results in index order.
func Map[T any](ctx context.Context, n, workers int, fn func(i int) T) ([]T, error) {
	out := make([]T, n)
	err := ForEachChunk(ctx, n, workers, func(_ context.Context, start, end int) error {
		for i := start; i < end; i++ {
			out[i] = fn(i)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
