package async

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/parley/pkg/helpers"
)

// DefaultMapConcurrency bounds Map when the caller passes a limit <= 0.
const DefaultMapConcurrency = 4

// Map runs f over every input with at most limit goroutines in flight.
// Results come back in input order, each carrying its own value or error;
// one failing input does not abort the others. The whole run stops early
// only when ctx is cancelled.
func Map[In any, Out any](ctx context.Context, inputs []In, limit int, f func(ctx context.Context, in In) (Out, error)) []helpers.Result[Out] {
	if limit <= 0 {
		limit = DefaultMapConcurrency
	}

	results := make([]helpers.Result[Out], len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = helpers.NewErrorResult[Out](err)
				return nil
			}
			v, err := f(gctx, in)
			results[i] = helpers.NewResult(v, err)
			// Per-input failures land in the result slot, never in the
			// group, so the remaining inputs keep running.
			return nil
		})
	}

	// The group error is always nil; Wait is only a join point.
	_ = g.Wait()

	return results
}
