// Package fanout runs a function over a slice of items with bounded
// concurrency. Results are collected by index so callers need no locking.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Do calls fn once per item, running at most workers calls concurrently.
// The first error cancels the remaining calls and is returned. With fewer
// than two workers or fewer than two items the calls run sequentially on the
// caller's goroutine.
func Do[T any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, index int, item T) error) error {
	if len(items) == 0 {
		return nil
	}
	if workers < 2 || len(items) < 2 {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i, item); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i, item)
		})
	}
	return g.Wait()
}
