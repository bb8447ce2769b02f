package processor

import "context"

// Sequential filters r into w one record at a time, using O(1) memory
// beyond the codec buffers. On error the returned Stats cover the rows seen
// so far.
func Sequential(ctx context.Context, r RecordReader, w RecordWriter, opt Options) (Stats, error) {
	opt = opt.withDefaults()

	var st Stats
	sc := newScanner(ctx, r, &st, opt)
	tick := ticker{every: opt.ProgressEvery}
	for {
		v, ok, err := sc.scan()
		if err != nil {
			return st, err
		}
		if !ok {
			break
		}
		if v.IsEligible(opt.MinRange) {
			if err := write(w, v); err != nil {
				return st, err
			}
			st.Eligible++
		}
		if tick.crossed(st.Rows) {
			opt.notify(opt.OnProgress, st, 0)
		}
	}
	return st, flush(w)
}
