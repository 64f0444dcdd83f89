package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for each value with at most limit calls in flight.
// It waits for all calls and returns the first error; the context passed
// to action is cancelled once any call fails. A limit below 1 means no
// limit.
func ForEach[T any](ctx context.Context, values []T, limit int, action func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, value := range values {
		value := value
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return action(ctx, value)
		})
	}
	return g.Wait()
}
