package processor

import (
	"context"
	"fmt"

	"evetl/internal/vehicle"
)

// maxPrealloc bounds the up-front batch allocation for very large batch sizes.
const maxPrealloc = 1 << 16

// Batched accumulates valid records into batches of opt.BatchSize. Each full
// batch, and the final partial one, is filtered with FilterEligible and its
// survivors written in batch order before the next batch starts, so peak
// memory is O(BatchSize).
//
// OnBatch is called after every flushed batch. OnProgress is called when the
// number of valid records filtered so far crosses a multiple of
// opt.ProgressEvery.
func Batched(ctx context.Context, r RecordReader, w RecordWriter, opt Options) (Stats, error) {
	if opt.BatchSize <= 0 {
		return Stats{}, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, opt.BatchSize)
	}
	opt = opt.withDefaults()

	var st Stats
	sc := newScanner(ctx, r, &st, opt)
	tick := ticker{every: opt.ProgressEvery}
	batch := make([]vehicle.Validated, 0, min(opt.BatchSize, maxPrealloc))

	flushBatch := func() error {
		kept, err := FilterEligible(ctx, batch, opt.MinRange, opt.Workers)
		if err != nil {
			return err
		}
		for _, v := range kept {
			if err := write(w, v); err != nil {
				return err
			}
			st.Eligible++
		}
		st.Batches++
		n := len(batch)
		clear(batch)
		batch = batch[:0]

		opt.notify(opt.OnBatch, st, n)
		if tick.crossed(st.Valid) {
			opt.notify(opt.OnProgress, st, n)
		}
		return nil
	}

	for {
		v, ok, err := sc.scan()
		if err != nil {
			return st, err
		}
		if !ok {
			break
		}
		batch = append(batch, v)
		if len(batch) == opt.BatchSize {
			if err := flushBatch(); err != nil {
				return st, err
			}
		}
	}
	if len(batch) > 0 {
		if err := flushBatch(); err != nil {
			return st, err
		}
	}
	return st, flush(w)
}
