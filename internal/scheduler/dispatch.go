package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentDispatch bounds how many ready tasks get their own
// goroutine within one Dispatch call, independent of any per-group
// cap. Grounded on the errgroup.SetLimit idiom observed in the pack
// (yungbote-neurobridge-backend's embed_chunks.go: `g, gctx :=
// errgroup.WithContext(ctx); g.SetLimit(maxConc)`), generalized from
// one batch of embedding calls to one batch of per-task pipelines.
const maxConcurrentDispatch = 8

// runEach runs fn(ctx, id) for every id concurrently, bounded by
// maxConcurrentDispatch, and returns the first error encountered (if
// any) after every goroutine has returned. Every call shares the
// caller's ctx directly rather than an errgroup-derived one: one
// task's pipeline must never cancel a sibling's in-flight call (spec
// §5 "there is no shared mutable state between them").
func runEach(ctx context.Context, ids []int64, fn func(ctx context.Context, id int64) error) error {
	if len(ids) == 0 {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(maxConcurrentDispatch)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			return fn(ctx, id)
		})
	}
	return g.Wait()
}
