package platform

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Limits bound the remote calls issued within one stage.
type Limits struct {
	// Concurrency caps in-flight items; zero or less runs them one at a time.
	Concurrency int

	// Limiter, when set, is waited on before each item starts.
	Limiter *rate.Limiter
}

// NewLimits builds Limits from a concurrency cap and a requests-per-second
// budget. rps of zero means unlimited.
func NewLimits(concurrency int, rps float64) Limits {
	l := Limits{Concurrency: concurrency}
	if rps > 0 {
		burst := concurrency
		if burst < 1 {
			burst = 1
		}
		l.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return l
}

// Wait blocks until the limiter admits one more call.
func (l Limits) Wait(ctx context.Context) error {
	if l.Limiter == nil {
		return nil
	}
	return l.Limiter.Wait(ctx)
}

// ForEach runs fn for indexes 0..n-1 within the limits and returns the first
// error. Once an item fails the context passed to the others is cancelled.
// Callers write results into a slice slot per index so output order never
// depends on scheduling.
func ForEach(ctx context.Context, l Limits, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	limit := l.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := l.Wait(gctx); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
