package processor

import (
	"context"
	"fmt"

	"evetl/internal/storage"
	"evetl/internal/vehicle"
)

// mirrorColumns are the database columns of the mirror table, in
// vehicle.Columns order.
var mirrorColumns = []storage.Column{
	{Name: "vin", Type: storage.TypeText},
	{Name: "county", Type: storage.TypeText},
	{Name: "city", Type: storage.TypeText},
	{Name: "state", Type: storage.TypeText},
	{Name: "postal_code", Type: storage.TypeText},
	{Name: "model_year", Type: storage.TypeInt},
	{Name: "make", Type: storage.TypeText},
	{Name: "model", Type: storage.TypeText},
	{Name: "electric_vehicle_type", Type: storage.TypeText},
	{Name: "cafv_eligibility", Type: storage.TypeText},
	{Name: "electric_range", Type: storage.TypeInt},
	{Name: "base_msrp", Type: storage.TypeBigInt, Nullable: true},
	{Name: "legislative_district", Type: storage.TypeInt, Nullable: true},
	{Name: "dol_vehicle_id", Type: storage.TypeBigInt},
	{Name: "vehicle_location", Type: storage.TypeText},
	{Name: "electric_utility", Type: storage.TypeText},
	{Name: "census_tract", Type: storage.TypeText},
}

// MirrorTable returns the definition of the table eligible records are
// mirrored into. The three fields required for validity are NOT NULL.
func MirrorTable(name string) storage.TableDef {
	return storage.TableDef{Name: name, Columns: mirrorColumns}
}

// mirrorWriter forwards records to next and copies them into repo in
// batches of size rows.
type mirrorWriter struct {
	ctx    context.Context
	next   RecordWriter
	repo   storage.Repository
	cols   []string
	size   int
	rows   [][]any
	copied int64
}

func newMirrorWriter(ctx context.Context, next RecordWriter, repo storage.Repository, size int) *mirrorWriter {
	return &mirrorWriter{
		ctx:  ctx,
		next: next,
		repo: repo,
		cols: MirrorTable("").ColumnNames(),
		size: size,
		rows: make([][]any, 0, min(size, maxPrealloc)),
	}
}

func (m *mirrorWriter) Write(r vehicle.Record) error {
	if err := m.next.Write(r); err != nil {
		return err
	}
	m.rows = append(m.rows, vehicle.Values(r))
	if len(m.rows) >= m.size {
		return m.copy()
	}
	return nil
}

func (m *mirrorWriter) Flush() error {
	if err := m.copy(); err != nil {
		return err
	}
	return m.next.Flush()
}

func (m *mirrorWriter) copy() error {
	if len(m.rows) == 0 {
		return nil
	}
	n, err := m.repo.CopyFrom(m.ctx, m.cols, m.rows)
	if err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	m.copied += n
	clear(m.rows)
	m.rows = m.rows[:0]
	return nil
}
