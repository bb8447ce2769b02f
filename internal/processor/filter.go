package processor

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"evetl/internal/vehicle"
)

// minChunk keeps tiny inputs from being split into goroutines that cost
// more than the comparisons they run.
const minChunk = 4096

// FilterEligible returns the records of recs whose range meets minRange, in
// their original order.
//
// recs is split into contiguous chunks evaluated concurrently by at most
// workers goroutines (runtime.NumCPU() when workers <= 0). Each goroutine
// writes only its own region of a keep mask, and survivors are collected
// after all goroutines finish, so no locking is needed.
func FilterEligible(ctx context.Context, recs []vehicle.Validated, minRange uint16, workers int) ([]vehicle.Validated, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := len(recs)
	if n == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	chunk := max((n+workers-1)/workers, minChunk)

	keep := make([]bool, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				keep[i] = recs[i].IsEligible(minRange)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	out := make([]vehicle.Validated, 0, kept)
	for i, k := range keep {
		if k {
			out = append(out, recs[i])
		}
	}
	return out, nil
}
