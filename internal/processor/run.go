package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"evetl/internal/checksum"
	"evetl/internal/config"
	"evetl/internal/datasource"
	"evetl/internal/datasource/file"
	"evetl/internal/metrics"
	"evetl/internal/storage"
	"evetl/internal/vehicle"
)

// Deps are the collaborators of Run. Zero fields get the production
// defaults.
type Deps struct {
	Source datasource.Source // default file.NewLocal(cfg.Input)
	Sink   datasource.Sink   // default file.NewAtomic(cfg.Output)
	Logger zerolog.Logger

	// OpenMirror opens the mirror repository; default storage.New.
	OpenMirror func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

// Result summarizes a successful run.
type Result struct {
	Stats
	Mode     config.Mode
	RunID    string
	Checksum uint64 // xxh3 of the output file
	Bytes    int64  // size of the output file
	Mirrored int64  // rows copied into the mirror table
	Elapsed  time.Duration
}

// Run executes one ETL run described by cfg: it opens the input, dispatches
// to the pipeline selected by cfg.Mode and publishes the output only if the
// pipeline succeeded. On error nothing is written at cfg.Output.
func Run(ctx context.Context, cfg config.Config, deps Deps) (Result, error) {
	start := time.Now()
	res := Result{Mode: cfg.Mode, RunID: ulid.Make().String()}
	log := deps.Logger.With().Str("run_id", res.RunID).Str("job", cfg.Job).Logger()

	err := run(ctx, cfg, deps, log, &res)
	res.Elapsed = time.Since(start)
	metrics.RecordStep(cfg.Job, "run", err, res.Elapsed)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", res.Elapsed).Msg("ETL failed")
		return res, err
	}

	recordMetrics(cfg.Job, res)
	logSummary(log, res)
	return res, nil
}

func run(ctx context.Context, cfg config.Config, deps Deps, log zerolog.Logger, res *Result) error {
	if !cfg.Mode.Valid() {
		return fmt.Errorf("%w: %s", config.ErrUnknownMode, cfg.Mode)
	}

	src := deps.Source
	if src == nil {
		src = file.NewLocal(cfg.Input)
	}
	sink := deps.Sink
	if sink == nil {
		sink = file.NewAtomic(cfg.Output)
	}

	log.Info().
		Str("input", cfg.Input).
		Str("output", cfg.Output).
		Uint16("min_range", cfg.MinRange).
		Stringer("mode", cfg.Mode).
		Msg("starting ETL process")

	in, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	dec, err := vehicle.NewDecoder(in)
	if err != nil {
		return fmt.Errorf("input %s: %w", cfg.Input, err)
	}

	out, err := sink.Create(ctx)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if aerr := out.Abort(); aerr != nil {
				log.Warn().Err(aerr).Msg("discard partial output")
			}
		}
	}()

	sum := checksum.NewWriter(out)
	var w RecordWriter = vehicle.NewEncoder(sum)

	var mirror *mirrorWriter
	if cfg.Mirror.Enabled() {
		repo, err := openMirror(ctx, cfg.Mirror, deps)
		if err != nil {
			return err
		}
		defer repo.Close()
		mirror = newMirrorWriter(ctx, w, repo, cfg.Mirror.BatchSize)
		w = mirror
	}

	opt := Options{
		MinRange:  cfg.MinRange,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		Logger:    log,
		OnProgress: func(p Progress) {
			ev := log.Info()
			if cfg.Mode == config.Batched {
				ev = ev.Int64("processed", p.Valid).Int64("batches", p.Batches)
			} else {
				ev = ev.Int64("processed", p.Rows)
			}
			ev.Int64("eligible", p.Eligible).Msg("progress")
		},
		OnBatch: func(p Progress) {
			log.Debug().
				Int64("batch", p.Batches).
				Int("size", p.BatchLen).
				Int64("eligible", p.Eligible).
				Msg("batch flushed")
		},
	}

	var st Stats
	switch cfg.Mode {
	case config.Sequential:
		st, err = Sequential(ctx, dec, w, opt)
	case config.Parallel:
		st, err = Parallel(ctx, dec, w, opt)
	case config.Batched:
		st, err = Batched(ctx, dec, w, opt)
	}
	res.Stats = st
	if mirror != nil {
		res.Mirrored = mirror.copied
	}
	if err != nil {
		return fmt.Errorf("%s pipeline: %w", cfg.Mode, err)
	}

	if err := out.Commit(); err != nil {
		return err
	}
	committed = true
	res.Checksum = sum.Sum64()
	res.Bytes = sum.Size()
	return nil
}

func openMirror(ctx context.Context, mc config.Mirror, deps Deps) (storage.Repository, error) {
	open := deps.OpenMirror
	if open == nil {
		open = storage.New
	}
	td := MirrorTable(mc.Table)
	repo, err := open(ctx, storage.Config{
		Kind:    mc.Kind,
		DSN:     mc.DSN,
		Table:   mc.Table,
		Columns: td.ColumnNames(),
	})
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	if err := storage.EnsureTable(ctx, mc.Kind, repo, td); err != nil {
		repo.Close()
		return nil, fmt.Errorf("create mirror table %s: %w", mc.Table, err)
	}
	return repo, nil
}

func recordMetrics(job string, res Result) {
	metrics.RecordRow(job, metrics.KindProcessed, res.Rows)
	metrics.RecordRow(job, metrics.KindValid, res.Valid)
	metrics.RecordRow(job, metrics.KindInvalid, res.Invalid)
	metrics.RecordRow(job, metrics.KindDecodeErrors, res.DecodeErrors)
	metrics.RecordRow(job, metrics.KindEligible, res.Eligible)
	metrics.RecordRow(job, metrics.KindMirrored, res.Mirrored)
	metrics.RecordBatches(job, res.Batches)
}

// logSummary logs the final counters. The field set depends on the mode.
func logSummary(log zerolog.Logger, res Result) {
	ev := log.Info()
	switch res.Mode {
	case config.Sequential:
		ev = ev.Int64("processed", res.Rows).Int64("eligible", res.Eligible).Int64("invalid", res.Invalid)
	case config.Parallel:
		ev = ev.Int64("valid", res.Valid).Int64("invalid", res.Invalid).Int64("eligible", res.Eligible)
	case config.Batched:
		ev = ev.Int64("total_processed", res.Valid).Int64("total_eligible", res.Eligible).Int64("batches", res.Batches)
	}
	if res.DecodeErrors > 0 {
		ev = ev.Int64("decode_errors", res.DecodeErrors)
	}
	if res.Mirrored > 0 {
		ev = ev.Int64("mirrored", res.Mirrored)
	}
	ev.Str("checksum", fmt.Sprintf("%016x", res.Checksum)).
		Int64("bytes", res.Bytes).
		Dur("elapsed", res.Elapsed).
		Msg("ETL completed")
}
