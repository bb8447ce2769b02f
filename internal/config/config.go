// Package config holds the evetl run configuration, its flag/environment
// binding and a static validator.
//
// Values come from command-line flags with EVETL_* environment fallbacks.
// Precedence is flag > environment > built-in default.
package config

// Built-in defaults.
const (
	DefaultMinRange    = 200
	DefaultBatchSize   = 10000
	DefaultJob         = "evetl"
	DefaultMirrorTable = "eligible_vehicles"
	DefaultMirrorBatch = 5000
)

// Metrics backends accepted by Metrics.Backend.
const (
	MetricsNone        = "none"
	MetricsPushgateway = "pushgateway"
	MetricsDatadog     = "datadog"
)

// Config is the fully resolved configuration of one run. It is a plain
// value and safe to copy after loading.
type Config struct {
	Input    string // source CSV path
	Output   string // destination CSV path
	MinRange uint16 // minimum electric range, inclusive
	Mode     Mode

	BatchSize int // records per batch (batched mode only)
	Workers   int // filter goroutines; 0 means runtime.NumCPU()

	// SkipInvalid is accepted for command-line compatibility. Malformed
	// and invalid rows are always skipped.
	SkipInvalid bool

	Job string // metrics job label and log field

	Log     Log
	Metrics Metrics
	Mirror  Mirror

	// ValidateOnly stops after configuration validation.
	ValidateOnly bool
}

// Log configures the process logger.
type Log struct {
	Level  string
	Format string // console | json
}

// Metrics configures the metrics backend.
type Metrics struct {
	Backend        string // none | pushgateway | datadog
	PushgatewayURL string
	StatsdAddr     string
}

// Mirror configures the optional database copy of eligible records.
// An empty Kind disables it.
type Mirror struct {
	Kind      string // sqlite | postgres | mssql
	DSN       string
	Table     string
	BatchSize int // rows per CopyFrom call
}

// Enabled reports whether eligible records are mirrored to a database.
func (m Mirror) Enabled() bool { return m.Kind != "" }
