// Package parallel provides the bounded worker pool used to evaluate the
// expressions and selection masks of a chunk concurrently.
//
// Work is fanned out on an errgroup limited to the pool size; the first
// error cancels the remaining items and is returned to the caller.
// Results keep the order of the input items.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds the number of goroutines working on one batch.
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a pool. A non-positive size means runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool{numWorkers: numWorkers}
}

// Size returns the maximum number of concurrent workers.
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// ProcessIndexed runs worker over items in parallel while preserving order.
// It stops at the first error or when ctx is cancelled.
func ProcessIndexed[T, R any](
	ctx context.Context,
	wp *WorkerPool,
	items []T,
	worker func(ctx context.Context, index int, item T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	results := make([]R, len(items))

	// one item needs no goroutines
	if len(items) == 1 || wp.numWorkers == 1 {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := worker(ctx, i, item)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(wp.numWorkers)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := worker(gctx, i, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ForEach runs fn for every index in [0, n) on the pool.
func ForEach(ctx context.Context, wp *WorkerPool, n int, fn func(ctx context.Context, index int) error) error {
	items := make([]struct{}, n)
	_, err := ProcessIndexed(ctx, wp, items, func(ctx context.Context, i int, _ struct{}) (struct{}, error) {
		return struct{}{}, fn(ctx, i)
	})
	return err
}
