package processor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"evetl/internal/vehicle"
)

// scanner pulls rows from a RecordReader, counts them into st and returns
// only valid records. Context cancellation is checked before every row.
type scanner struct {
	ctx  context.Context
	r    RecordReader
	st   *Stats
	warn warner
}

func newScanner(ctx context.Context, r RecordReader, st *Stats, opt Options) *scanner {
	return &scanner{ctx: ctx, r: r, st: st, warn: warner{log: opt.Logger, max: opt.MaxWarnings}}
}

// scan returns the next valid record, or ok=false at the end of input.
func (s *scanner) scan() (v vehicle.Validated, ok bool, err error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return v, false, err
		}
		rec, err := s.r.Next()
		if err != nil {
			if err == io.EOF {
				return v, false, nil
			}
			var de *vehicle.DecodeError
			if !errors.As(err, &de) {
				return v, false, fmt.Errorf("read: %w", err)
			}
			s.st.Rows++
			s.st.Invalid++
			s.st.DecodeErrors++
			s.warn.warn(err)
			continue
		}

		s.st.Rows++
		if v, ok = rec.Validate(); !ok {
			s.st.Invalid++
			continue
		}
		s.st.Valid++
		return v, true, nil
	}
}

func write(w RecordWriter, v vehicle.Validated) error {
	if err := w.Write(v.Record()); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func flush(w RecordWriter) error {
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
