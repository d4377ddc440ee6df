package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map calls body for every i in [0, length) using at most limit goroutines and
// stores each result at out[i], so the output order never depends on which
// goroutine finished first.
//
// When some calls fail, Map returns the error of the lowest failing index.
// Indices above the first observed failure may be skipped.
func Map[T any](length, limit int, body func(i int) (T, error)) ([]T, error) {
	return MapContext(context.Background(), length, limit, body)
}

// MapContext is Map that stops scheduling new indices once ctx is done.
// The context error is returned only when no index failed on its own.
func MapContext[T any](ctx context.Context, length, limit int, body func(i int) (T, error)) ([]T, error) {
	if length <= 0 {
		return []T{}, ctx.Err()
	}
	out := make([]T, length)
	errs := make([]error, length)

	if limit <= 1 {
		for i := 0; i < length; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			v, err := body(i)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	// every index below a failing one is launched before it and always runs
	// to completion, which keeps the reported error deterministic
	for i := 0; i < length; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v, err := body(i)
			if err != nil {
				errs[i] = err
				return err
			}
			out[i] = v
			return nil
		})
	}
	waitErr := g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
