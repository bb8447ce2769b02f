// Package processor implements the three filtering pipelines and the run
// orchestrator.
//
// Every pipeline reads records from a RecordReader, drops malformed and
// invalid rows, keeps records whose electric range meets the minimum and
// writes them to a RecordWriter in input order. They select exactly the
// same rows and differ only in memory profile and parallelism:
//
//   - Sequential streams one record at a time.
//   - Parallel loads every valid record, then filters them all at once.
//   - Batched filters fixed-size batches as they fill.
//
// Per-row decode errors are counted and never abort a run. Reader, writer
// and context errors are fatal.
package processor

import (
	"errors"

	"github.com/rs/zerolog"

	"evetl/internal/vehicle"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultProgressEvery = 100_000
	DefaultMaxWarnings   = 10
)

// ErrInvalidBatchSize is returned by Batched for a non-positive batch size.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// RecordReader yields decoded records. Next returns io.EOF at the end of
// input and a *vehicle.DecodeError for a malformed row; any other error is
// fatal.
type RecordReader interface {
	Next() (vehicle.Record, error)
}

// RecordWriter receives eligible records in input order.
type RecordWriter interface {
	Write(vehicle.Record) error
	Flush() error
}

// Options tune a pipeline run.
type Options struct {
	MinRange  uint16 // inclusive minimum electric range
	BatchSize int    // Batched only; must be positive
	Workers   int    // filter goroutines; <= 0 means runtime.NumCPU()

	// ProgressEvery is the interval, in records, between OnProgress calls.
	// Sequential counts rows read; Batched counts valid records filtered.
	ProgressEvery int64

	// MaxWarnings caps the malformed-row warnings logged per run. Later
	// rows are still counted in Stats.DecodeErrors.
	MaxWarnings int

	Logger zerolog.Logger

	OnBatch    func(Progress) // after every Batched flush
	OnProgress func(Progress) // when the processed count crosses a multiple of ProgressEvery
}

func (o Options) withDefaults() Options {
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.MaxWarnings <= 0 {
		o.MaxWarnings = DefaultMaxWarnings
	}
	return o
}

// Stats are the counters of one pipeline run.
//
//	Rows    = Valid + Invalid
//	Invalid = DecodeErrors + rows missing a required field
type Stats struct {
	Rows         int64 // data rows read, malformed ones included
	Valid        int64 // rows that decoded and passed Validate
	Invalid      int64 // rows dropped as malformed or invalid
	DecodeErrors int64 // malformed rows
	Eligible     int64 // records written
	Batches      int64 // batches flushed (Batched only)
}

// Progress is the snapshot passed to observers.
type Progress struct {
	Stats
	BatchLen int // records in the batch just flushed; 0 outside OnBatch
}

func (o Options) notify(fn func(Progress), st Stats, batchLen int) {
	if fn != nil {
		fn(Progress{Stats: st, BatchLen: batchLen})
	}
}

// ticker reports when a running count crosses into a new multiple of every.
type ticker struct {
	every int64
	last  int64
}

func (t *ticker) crossed(n int64) bool {
	b := n / t.every
	if b > t.last {
		t.last = b
		return true
	}
	return false
}

// warner logs the first max malformed rows, then one suppression notice.
type warner struct {
	log zerolog.Logger
	max int
	n   int
}

func (w *warner) warn(err error) {
	w.n++
	switch {
	case w.n <= w.max:
		w.log.Warn().Err(err).Msg("skipping malformed row")
	case w.n == w.max+1:
		w.log.Warn().Int("shown", w.max).Msg("further malformed row warnings suppressed")
	}
}
