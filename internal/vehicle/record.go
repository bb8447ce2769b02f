// Package vehicle defines the vehicle registration record read from the
// electric vehicle population CSV, the predicates used to filter it, and the
// CSV decode/encode boundary around it.
package vehicle

// Record is one row of the registration dataset.
//
// Optional numeric columns use pointer types for NULL-ability: nil means the
// cell was empty, which is different from an explicit zero. A Record is a
// value; nothing downstream of the decoder mutates it.
type Record struct {
	VIN                 string
	County              string
	City                string
	State               string
	PostalCode          string
	ModelYear           *uint16
	Make                string
	Model               string
	ElectricVehicleType string
	CAFVEligibility     string
	ElectricRange       *uint16
	BaseMSRP            *uint32
	LegislativeDistrict *uint16
	DOLVehicleID        *uint64
	VehicleLocation     string
	ElectricUtility     string
	CensusTract         string
}

// HasValidData reports whether the fields required for filtering are present:
// electric range, model year and DOL vehicle id. Only presence is checked,
// never the values.
func (r Record) HasValidData() bool {
	return r.ElectricRange != nil && r.ModelYear != nil && r.DOLVehicleID != nil
}

// IsEligible reports whether the electric range meets minRange. An absent
// range counts as 0, so callers that care about the difference must check
// HasValidData first (or go through Validate).
func (r Record) IsEligible(minRange uint16) bool {
	var rng uint16
	if r.ElectricRange != nil {
		rng = *r.ElectricRange
	}
	return rng >= minRange
}

// Validated is a Record that passed HasValidData. It can only be obtained
// from Record.Validate.
type Validated struct {
	rec Record
}

// Validate returns the validated form of r, or false when r is missing any
// required field.
func (r Record) Validate() (Validated, bool) {
	if !r.HasValidData() {
		return Validated{}, false
	}
	return Validated{rec: r}, true
}

// Record returns the underlying record.
func (v Validated) Record() Record { return v.rec }

// IsEligible reports whether the (present) electric range meets minRange.
func (v Validated) IsEligible(minRange uint16) bool {
	return *v.rec.ElectricRange >= minRange
}
