package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"evetl/internal/vehicle"
)

var csvHeader = strings.Join(vehicle.Columns, ",")

// row renders one CSV data row. An empty rng or dol leaves the cell empty.
func row(vin, rng, dol string) string {
	return fmt.Sprintf("%s,King,Seattle,WA,98101,2020,TESLA,MODEL Y,BEV,Eligible,%s,0,43,%s,POINT (-122.3 47.6),PUGET SOUND ENERGY INC,53033000100", vin, rng, dol)
}

func csvInput(rows ...string) string {
	return csvHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

type pipelineFunc func(context.Context, RecordReader, RecordWriter, Options) (Stats, error)

var pipelines = []struct {
	name string
	run  pipelineFunc
}{
	{"sequential", Sequential},
	{"parallel", Parallel},
	{"batched", Batched},
}

// runCSV decodes in, runs p and returns the encoded output.
func runCSV(t *testing.T, p pipelineFunc, in string, opt Options) (string, Stats) {
	t.Helper()
	dec, err := vehicle.NewDecoder(strings.NewReader(in))
	require.NoError(t, err)
	var buf bytes.Buffer
	st, err := p(context.Background(), dec, vehicle.NewEncoder(&buf), opt)
	require.NoError(t, err)
	return buf.String(), st
}

// vins returns the VIN column of an encoded output, header excluded.
func vins(t *testing.T, out string) []string {
	t.Helper()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Equal(t, csvHeader, lines[0])
	got := []string{}
	for _, l := range lines[1:] {
		got = append(got, strings.SplitN(l, ",", 2)[0])
	}
	return got
}

func opts() Options {
	return Options{MinRange: 200, BatchSize: 2, Workers: 4, Logger: zerolog.Nop()}
}

// validRec returns a valid record with the given id and range.
func validRec(id uint64, rng uint16) vehicle.Record {
	y := uint16(2021)
	return vehicle.Record{VIN: "V" + strconv.FormatUint(id, 10), ModelYear: &y, ElectricRange: &rng, DOLVehicleID: &id}
}

// sliceReader replays items; an error item is returned instead of a record.
type sliceReader struct {
	items []any
	i     int
	calls int
}

func (s *sliceReader) Next() (vehicle.Record, error) {
	s.calls++
	if s.i >= len(s.items) {
		return vehicle.Record{}, io.EOF
	}
	it := s.items[s.i]
	s.i++
	switch v := it.(type) {
	case vehicle.Record:
		return v, nil
	case error:
		return vehicle.Record{}, v
	}
	panic(fmt.Sprintf("unexpected item %T", it))
}

// memWriter collects written records.
type memWriter struct {
	recs     []vehicle.Record
	flushes  int
	writeErr error
	flushErr error
}

func (m *memWriter) Write(r vehicle.Record) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.recs = append(m.recs, r)
	return nil
}

func (m *memWriter) Flush() error {
	m.flushes++
	return m.flushErr
}
