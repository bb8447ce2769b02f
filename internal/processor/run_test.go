package processor

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evetl/internal/checksum"
	"evetl/internal/config"
	"evetl/internal/storage"
	_ "evetl/internal/storage/sqlite"
)

func runConfig(t *testing.T, mode config.Mode, input string) config.Config {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(in, []byte(input), 0o644))
	return config.Config{
		Input:     in,
		Output:    filepath.Join(dir, "out.csv"),
		MinRange:  200,
		Mode:      mode,
		BatchSize: 2,
		Job:       config.DefaultJob,
	}
}

func TestRun_AllModes(t *testing.T) {
	t.Parallel()

	for _, mode := range []config.Mode{config.Sequential, config.Parallel, config.Batched} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			cfg := runConfig(t, mode, mixedInput)
			var logs bytes.Buffer
			res, err := Run(context.Background(), cfg, Deps{Logger: zerolog.New(&logs)})
			require.NoError(t, err)

			out, err := os.ReadFile(cfg.Output)
			require.NoError(t, err)
			assert.Equal(t, []string{"A1", "F6", "H8", "I9"}, vins(t, string(out)))

			assert.Equal(t, mode, res.Mode)
			assert.Len(t, res.RunID, 26)
			assert.Equal(t, int64(4), res.Eligible)
			assert.Equal(t, int64(2), res.DecodeErrors)
			assert.Equal(t, checksum.Bytes(out), res.Checksum)
			assert.Equal(t, int64(len(out)), res.Bytes)

			assert.Contains(t, logs.String(), "starting ETL process")
			assert.Contains(t, logs.String(), "ETL completed")
			assert.Contains(t, logs.String(), res.RunID)
		})
	}
}

func TestRun_SummaryFieldsPerMode(t *testing.T) {
	t.Parallel()

	cases := map[config.Mode][]string{
		config.Sequential: {`"processed":9`, `"eligible":4`, `"invalid":4`},
		config.Parallel:   {`"valid":5`, `"invalid":4`, `"eligible":4`},
		config.Batched:    {`"total_processed":5`, `"total_eligible":4`, `"batches":3`},
	}
	for mode, fields := range cases {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer
			_, err := Run(context.Background(), runConfig(t, mode, mixedInput), Deps{Logger: zerolog.New(&logs)})
			require.NoError(t, err)

			var summary string
			for _, l := range strings.Split(logs.String(), "\n") {
				if strings.Contains(l, "ETL completed") {
					summary = l
				}
			}
			require.NotEmpty(t, summary)
			for _, f := range fields {
				assert.Contains(t, summary, f)
			}
		})
	}
}

func TestRun_SameInputSameChecksum(t *testing.T) {
	t.Parallel()

	var sums []uint64
	for _, mode := range []config.Mode{config.Sequential, config.Parallel, config.Batched, config.Sequential} {
		res, err := Run(context.Background(), runConfig(t, mode, mixedInput), Deps{Logger: zerolog.Nop()})
		require.NoError(t, err)
		sums = append(sums, res.Checksum)
	}
	for _, s := range sums[1:] {
		assert.Equal(t, sums[0], s)
	}
}

func TestRun_MissingInput(t *testing.T) {
	t.Parallel()

	cfg := runConfig(t, config.Sequential, mixedInput)
	cfg.Input = filepath.Join(t.TempDir(), "nope.csv")

	_, err := Run(context.Background(), cfg, Deps{Logger: zerolog.Nop()})
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, cfg.Output)
}

func TestRun_MissingColumn(t *testing.T) {
	t.Parallel()

	cfg := runConfig(t, config.Parallel, "VIN (1-10),County\nX,King\n")
	_, err := Run(context.Background(), cfg, Deps{Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
	assert.NoFileExists(t, cfg.Output)
}

func TestRun_UnknownMode(t *testing.T) {
	t.Parallel()

	cfg := runConfig(t, config.Mode(42), mixedInput)
	_, err := Run(context.Background(), cfg, Deps{Logger: zerolog.Nop()})
	require.ErrorIs(t, err, config.ErrUnknownMode)
	assert.NoFileExists(t, cfg.Output)
}

func TestRun_InvalidBatchSize(t *testing.T) {
	t.Parallel()

	cfg := runConfig(t, config.Batched, mixedInput)
	cfg.BatchSize = 0
	_, err := Run(context.Background(), cfg, Deps{Logger: zerolog.Nop()})
	require.ErrorIs(t, err, ErrInvalidBatchSize)
	assert.NoFileExists(t, cfg.Output)
}

// brokenSource serves a valid header and a few rows, then fails.
type brokenSource struct{ err error }

func (b brokenSource) Open(context.Context) (io.ReadCloser, error) {
	head := strings.NewReader(csvInput(row("A1", "250", "1"), row("B2", "300", "2")))
	return io.NopCloser(io.MultiReader(head, errReader{b.err})), nil
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func TestRun_FailureLeavesNoOutput(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset by peer")
	for _, mode := range []config.Mode{config.Sequential, config.Parallel, config.Batched} {
		cfg := runConfig(t, mode, "")
		_, err := Run(context.Background(), cfg, Deps{Source: brokenSource{err: boom}, Logger: zerolog.Nop()})
		require.ErrorIs(t, err, boom, mode.String())
		assert.NoFileExists(t, cfg.Output, mode.String())

		entries, err := os.ReadDir(filepath.Dir(cfg.Output))
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file %s left behind", e.Name())
		}
	}
}

func TestRun_FailureKeepsPreviousOutput(t *testing.T) {
	t.Parallel()

	cfg := runConfig(t, config.Sequential, "")
	require.NoError(t, os.WriteFile(cfg.Output, []byte("previous"), 0o644))

	_, err := Run(context.Background(), cfg, Deps{Source: brokenSource{err: io.ErrUnexpectedEOF}, Logger: zerolog.Nop()})
	require.Error(t, err)
	got, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(got))
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := runConfig(t, config.Batched, mixedInput)
	_, err := Run(ctx, cfg, Deps{Logger: zerolog.Nop()})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, cfg.Output)
}

func TestRun_MirrorWithFakeRepo(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	var gotCfg storage.Config
	cfg := runConfig(t, config.Batched, mixedInput)
	cfg.Mirror = config.Mirror{Kind: "fake", DSN: "x", Table: "evs", BatchSize: 3}

	_, err := Run(context.Background(), cfg, Deps{
		Logger: zerolog.Nop(),
		OpenMirror: func(_ context.Context, c storage.Config) (storage.Repository, error) {
			gotCfg = c
			return repo, nil
		},
	})
	// No DDL bootstrapper is registered for "fake".
	require.Error(t, err)
	assert.Equal(t, "evs", gotCfg.Table)
	assert.Len(t, gotCfg.Columns, 17)
	assert.True(t, repo.closed)
	assert.NoFileExists(t, cfg.Output)
}

func TestRun_MirrorSQLite(t *testing.T) {
	t.Parallel()

	cfg := runConfig(t, config.Sequential, mixedInput)
	dbPath := filepath.Join(t.TempDir(), "evs.db")
	cfg.Mirror = config.Mirror{Kind: "sqlite", DSN: dbPath, Table: "eligible_vehicles", BatchSize: 3}

	res, err := Run(context.Background(), cfg, Deps{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Mirrored)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM eligible_vehicles WHERE electric_range >= 200`).Scan(&n))
	assert.Equal(t, 4, n)

	var vin string
	require.NoError(t, db.QueryRow(`SELECT vin FROM eligible_vehicles WHERE dol_vehicle_id = 9`).Scan(&vin))
	assert.Equal(t, "I9", vin)
}

func TestRun_MirrorCopyFailureIsFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	cfg := runConfig(t, config.Parallel, mixedInput)
	cfg.Mirror = config.Mirror{Kind: "sqlite", DSN: "unused", Table: "evs", BatchSize: 1}

	repo := &fakeRepo{copyErr: boom}
	_, err := Run(context.Background(), cfg, Deps{
		Logger:     zerolog.Nop(),
		OpenMirror: func(context.Context, storage.Config) (storage.Repository, error) { return repo, nil },
	})
	require.ErrorIs(t, err, boom)
	assert.NoFileExists(t, cfg.Output)
	assert.Len(t, repo.execs, 1, "table created through the sqlite bootstrapper")
}

func TestRun_FailedRunKeepsMirroredBatches(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset by peer")
	cfg := runConfig(t, config.Sequential, "")
	cfg.Mirror = config.Mirror{Kind: "sqlite", DSN: "unused", Table: "evs", BatchSize: 1}

	repo := &fakeRepo{}
	_, err := Run(context.Background(), cfg, Deps{
		Source:     brokenSource{err: boom},
		Logger:     zerolog.Nop(),
		OpenMirror: func(context.Context, storage.Config) (storage.Repository, error) { return repo, nil },
	})
	require.ErrorIs(t, err, boom)
	assert.NoFileExists(t, cfg.Output)
	// Batches copied before the failure stay in the mirror table.
	require.Len(t, repo.copies, 2)
	assert.Equal(t, "A1", repo.copies[0][0][0])
	assert.Equal(t, "B2", repo.copies[1][0][0])
	assert.True(t, repo.closed)
}
