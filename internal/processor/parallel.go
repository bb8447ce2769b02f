package processor

import (
	"context"

	"evetl/internal/vehicle"
)

// Parallel loads every valid record of r into memory, filters the whole set
// with FilterEligible and then writes the survivors. Peak memory is O(valid
// records).
func Parallel(ctx context.Context, r RecordReader, w RecordWriter, opt Options) (Stats, error) {
	opt = opt.withDefaults()

	var (
		st    Stats
		valid []vehicle.Validated
	)
	sc := newScanner(ctx, r, &st, opt)
	for {
		v, ok, err := sc.scan()
		if err != nil {
			return st, err
		}
		if !ok {
			break
		}
		valid = append(valid, v)
	}
	opt.Logger.Info().
		Int64("valid", st.Valid).
		Int64("invalid", st.Invalid).
		Msg("loaded records")

	kept, err := FilterEligible(ctx, valid, opt.MinRange, opt.Workers)
	if err != nil {
		return st, err
	}
	valid = nil

	for _, v := range kept {
		if err := write(w, v); err != nil {
			return st, err
		}
		st.Eligible++
	}
	return st, flush(w)
}
