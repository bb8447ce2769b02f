package vehicle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Column names as they appear in the source header. Matching is exact.
const (
	ColVIN                 = "VIN (1-10)"
	ColCounty              = "County"
	ColCity                = "City"
	ColState               = "State"
	ColPostalCode          = "Postal Code"
	ColModelYear           = "Model Year"
	ColMake                = "Make"
	ColModel               = "Model"
	ColElectricVehicleType = "Electric Vehicle Type"
	ColCAFVEligibility     = "Clean Alternative Fuel Vehicle (CAFV) Eligibility"
	ColElectricRange       = "Electric Range"
	ColBaseMSRP            = "Base MSRP"
	ColLegislativeDistrict = "Legislative District"
	ColDOLVehicleID        = "DOL Vehicle ID"
	ColVehicleLocation     = "Vehicle Location"
	ColElectricUtility     = "Electric Utility"
	ColCensusTract         = "2020 Census Tract"
)

// Columns is the canonical column order. The encoder writes it as the output
// header, and it matches the published dataset layout.
var Columns = []string{
	ColVIN,
	ColCounty,
	ColCity,
	ColState,
	ColPostalCode,
	ColModelYear,
	ColMake,
	ColModel,
	ColElectricVehicleType,
	ColCAFVEligibility,
	ColElectricRange,
	ColBaseMSRP,
	ColLegislativeDistrict,
	ColDOLVehicleID,
	ColVehicleLocation,
	ColElectricUtility,
	ColCensusTract,
}

const utf8BOM = "\uFEFF"

// ErrMissingColumn is returned by NewDecoder when the header lacks one of
// the columns in Columns.
var ErrMissingColumn = errors.New("missing column")

// DecodeError describes a single malformed row. It is recoverable: the
// decoder continues with the next row on the following call to Next.
type DecodeError struct {
	Line   int    // 1-based line where the row starts
	Column string // offending column, empty for structural errors
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %q: %v", e.Line, e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder turns CSV rows into Records by header name.
type Decoder struct {
	cr    *csv.Reader
	src   []int // src[i] is the input index of Columns[i]
	width int   // header width; every row must match it
}

// NewDecoder reads the header from r and maps it onto Columns. Header cells
// are NFC-normalized and a UTF-8 BOM on the first cell is dropped before
// matching; columns not in Columns are ignored.
//
// A header that lacks any of Columns is rejected up front with
// ErrMissingColumn naming every absent column. Rows are never decoded with
// an absent field left empty or reported row by row as decode failures, so
// a truncated or mislabeled export fails the run before any output.
func NewDecoder(r io.Reader) (*Decoder, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1 // width is checked per row against the header

	hdr, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("read header: empty input")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	pos := make(map[string]int, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = norm.NFC.String(h)
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	d := &Decoder{cr: cr, src: make([]int, len(Columns)), width: len(hdr)}
	var missing []string
	for i, c := range Columns {
		ix, ok := pos[c]
		if !ok {
			missing = append(missing, strconv.Quote(c))
			continue
		}
		d.src[i] = ix
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return d, nil
}

// Next decodes the next row. It returns io.EOF at the end of input and a
// *DecodeError for a malformed row. Any other error comes from the
// underlying reader and is not recoverable.
func (d *Decoder) Next() (Record, error) {
	row, err := d.cr.Read()
	if err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Record{}, &DecodeError{Line: pe.StartLine, Err: pe.Err}
		}
		return Record{}, fmt.Errorf("csv read: %w", err)
	}

	line, _ := d.cr.FieldPos(0)
	if len(row) != d.width {
		return Record{}, &DecodeError{
			Line: line,
			Err:  fmt.Errorf("%w: got %d fields, header has %d", csv.ErrFieldCount, len(row), d.width),
		}
	}

	cell := func(i int) string { return row[d.src[i]] }

	rec := Record{
		VIN:                 cell(0),
		County:              cell(1),
		City:                cell(2),
		State:               cell(3),
		PostalCode:          cell(4),
		Make:                cell(6),
		Model:               cell(7),
		ElectricVehicleType: cell(8),
		CAFVEligibility:     cell(9),
		VehicleLocation:     cell(14),
		ElectricUtility:     cell(15),
		CensusTract:         cell(16),
	}

	if rec.ModelYear, err = parseUint16(cell(5)); err != nil {
		return Record{}, &DecodeError{Line: line, Column: ColModelYear, Err: err}
	}
	if rec.ElectricRange, err = parseUint16(cell(10)); err != nil {
		return Record{}, &DecodeError{Line: line, Column: ColElectricRange, Err: err}
	}
	if rec.BaseMSRP, err = parseUint32(cell(11)); err != nil {
		return Record{}, &DecodeError{Line: line, Column: ColBaseMSRP, Err: err}
	}
	if rec.LegislativeDistrict, err = parseUint16(cell(12)); err != nil {
		return Record{}, &DecodeError{Line: line, Column: ColLegislativeDistrict, Err: err}
	}
	if rec.DOLVehicleID, err = parseUint64(cell(13)); err != nil {
		return Record{}, &DecodeError{Line: line, Column: ColDOLVehicleID, Err: err}
	}
	return rec, nil
}

func parseUint16(s string) (*uint16, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return nil, err
	}
	v := uint16(n)
	return &v, nil
}

func parseUint32(s string) (*uint32, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, err
	}
	v := uint32(n)
	return &v, nil
}

func parseUint64(s string) (*uint64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Encoder writes Records as CSV in Columns order. The header is written
// before the first row, or on Flush when no row was written.
type Encoder struct {
	cw     *csv.Writer
	header bool
	row    []string
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{cw: csv.NewWriter(w), row: make([]string, len(Columns))}
}

// Write encodes one record. Errors from the underlying writer may surface
// here or on Flush.
func (e *Encoder) Write(r Record) error {
	if err := e.writeHeader(); err != nil {
		return err
	}
	Fields(r, e.row)
	if err := e.cw.Write(e.row); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	if err := e.writeHeader(); err != nil {
		return err
	}
	e.cw.Flush()
	if err := e.cw.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	return nil
}

func (e *Encoder) writeHeader() error {
	if e.header {
		return nil
	}
	e.header = true
	if err := e.cw.Write(Columns); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	return nil
}

// Fields renders r into dst in Columns order. dst must have len(Columns)
// elements. Absent numerics render as "".
func Fields(r Record, dst []string) {
	dst[0] = r.VIN
	dst[1] = r.County
	dst[2] = r.City
	dst[3] = r.State
	dst[4] = r.PostalCode
	dst[5] = fmtUint16(r.ModelYear)
	dst[6] = r.Make
	dst[7] = r.Model
	dst[8] = r.ElectricVehicleType
	dst[9] = r.CAFVEligibility
	dst[10] = fmtUint16(r.ElectricRange)
	dst[11] = fmtUint32(r.BaseMSRP)
	dst[12] = fmtUint16(r.LegislativeDistrict)
	dst[13] = fmtUint64(r.DOLVehicleID)
	dst[14] = r.VehicleLocation
	dst[15] = r.ElectricUtility
	dst[16] = r.CensusTract
}

// Values renders r as typed values in Columns order, with nil for absent
// numerics. This is the shape storage backends bulk-load.
func Values(r Record) []any {
	return []any{
		r.VIN,
		r.County,
		r.City,
		r.State,
		r.PostalCode,
		optInt(r.ModelYear),
		r.Make,
		r.Model,
		r.ElectricVehicleType,
		r.CAFVEligibility,
		optInt(r.ElectricRange),
		optInt(r.BaseMSRP),
		optInt(r.LegislativeDistrict),
		optInt(r.DOLVehicleID),
		r.VehicleLocation,
		r.ElectricUtility,
		r.CensusTract,
	}
}

func optInt[T uint16 | uint32 | uint64](p *T) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func fmtUint16(p *uint16) string {
	if p == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*p), 10)
}

func fmtUint32(p *uint32) string {
	if p == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*p), 10)
}

func fmtUint64(p *uint64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatUint(*p, 10)
}
