package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerFunc processes one item and returns its result.
type WorkerFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Result pairs a worker's output with the item it came from.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// Map runs workerFunc over items with at most numWorkers in flight and
// returns one Result per item, in input order. A failing item does not stop
// the others; a cancelled ctx stops items that have not started yet, which
// report ctx.Err().
func Map[T, R any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T, R]) []Result[T, R] {
	results := make([]Result[T, R], len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}

	var g errgroup.Group
	g.SetLimit(numWorkers)
	for i, item := range items {
		results[i].Item = item
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Value, results[i].Err = workerFunc(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Errors returns the non-nil errors of results, in input order.
func Errors[T, R any](results []Result[T, R]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
