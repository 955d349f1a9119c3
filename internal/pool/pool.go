// Package pool runs one task per item on a bounded number of goroutines and
// hands the results back in input order.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type Result[T any] struct {
	Value T
	Err   error
}

// Map applies fn to every item with at most limit tasks in flight. All tasks
// run to completion; a failing task does not cancel its siblings. limit <= 0
// means unbounded.
func Map[I, O any](ctx context.Context, limit int, items []I, fn func(context.Context, I) (O, error)) []Result[O] {
	results := make([]Result[O], len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			value, err := fn(ctx, item)
			results[i] = Result[O]{Value: value, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// FirstError returns the error of the earliest failed result in input order.
func FirstError[T any](results []Result[T]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
