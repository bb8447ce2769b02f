package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variable of every flag: --min-range is
// read from EVETL_MIN_RANGE.
const EnvPrefix = "EVETL"

// Flag names.
const (
	FlagInput          = "input"
	FlagOutput         = "output"
	FlagMinRange       = "min-range"
	FlagMode           = "mode"
	FlagBatchSize      = "batch-size"
	FlagWorkers        = "workers"
	FlagSkipInvalid    = "skip-invalid"
	FlagLogLevel       = "log-level"
	FlagLogFormat      = "log-format"
	FlagJob            = "job"
	FlagMetricsBackend = "metrics-backend"
	FlagPushgatewayURL = "pushgateway-url"
	FlagStatsdAddr     = "statsd-addr"
	FlagMirrorKind     = "mirror-kind"
	FlagMirrorDSN      = "mirror-dsn"
	FlagMirrorTable    = "mirror-table"
	FlagMirrorBatch    = "mirror-batch"
	FlagValidate       = "validate"
)

// BindFlags defines every evetl flag on fs with its built-in default.
func BindFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagInput, "i", "", "Input CSV file path")
	fs.StringP(FlagOutput, "o", "", "Output CSV file path")
	fs.Uint16P(FlagMinRange, "r", DefaultMinRange, "Minimum electric range filter (inclusive)")
	fs.StringP(FlagMode, "m", Sequential.String(), "Processing mode: sequential, parallel, batched")
	fs.Int(FlagBatchSize, DefaultBatchSize, "Batch size for batched processing")
	fs.Int(FlagWorkers, 0, "Filter goroutines for parallel and batched modes (0 = number of CPUs)")
	fs.Bool(FlagSkipInvalid, true, "Skip records with invalid data instead of failing")

	fs.String(FlagLogLevel, "info", "Log level: debug, info, warn, error")
	fs.String(FlagLogFormat, "console", "Log format: console or json")
	fs.String(FlagJob, DefaultJob, "Job name used for metrics and logs")

	fs.String(FlagMetricsBackend, MetricsNone, "Metrics backend: none, pushgateway, datadog")
	fs.String(FlagPushgatewayURL, "", "Prometheus Pushgateway base URL")
	fs.String(FlagStatsdAddr, "", "DogStatsD address, e.g. 127.0.0.1:8125")

	fs.String(FlagMirrorKind, "", "Also load eligible records into a database: sqlite, postgres or mssql")
	fs.String(FlagMirrorDSN, "", "Mirror database DSN")
	fs.String(FlagMirrorTable, DefaultMirrorTable, "Mirror table name")
	fs.Int(FlagMirrorBatch, DefaultMirrorBatch, "Rows per mirror COPY batch")

	fs.Bool(FlagValidate, false, "Validate the configuration and exit")
}

// Load resolves a Config from the parsed flags on fs and the environment.
// A flag set on the command line wins over its EVETL_* variable, which wins
// over the flag default. Malformed environment values are reported as
// errors rather than silently replaced by zero.
//
// The mode name is parsed here, so an unknown mode fails before any
// pipeline is selected.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}

	var (
		cfg  Config
		errs []string
	)
	uint16Of := func(key string) uint16 {
		n, err := cast.ToUint16E(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return n
	}
	intOf := func(key string) int {
		n, err := cast.ToIntE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return n
	}
	boolOf := func(key string) bool {
		b, err := cast.ToBoolE(v.Get(key))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return b
	}

	cfg.Input = v.GetString(FlagInput)
	cfg.Output = v.GetString(FlagOutput)
	cfg.MinRange = uint16Of(FlagMinRange)
	cfg.BatchSize = intOf(FlagBatchSize)
	cfg.Workers = intOf(FlagWorkers)
	cfg.SkipInvalid = boolOf(FlagSkipInvalid)
	cfg.Job = v.GetString(FlagJob)
	cfg.Log = Log{
		Level:  v.GetString(FlagLogLevel),
		Format: v.GetString(FlagLogFormat),
	}
	cfg.Metrics = Metrics{
		Backend:        strings.ToLower(v.GetString(FlagMetricsBackend)),
		PushgatewayURL: v.GetString(FlagPushgatewayURL),
		StatsdAddr:     v.GetString(FlagStatsdAddr),
	}
	cfg.Mirror = Mirror{
		Kind:      strings.ToLower(v.GetString(FlagMirrorKind)),
		DSN:       v.GetString(FlagMirrorDSN),
		Table:     v.GetString(FlagMirrorTable),
		BatchSize: intOf(FlagMirrorBatch),
	}
	cfg.ValidateOnly = boolOf(FlagValidate)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration value: %s", strings.Join(errs, "; "))
	}

	mode, err := ParseMode(v.GetString(FlagMode))
	if err != nil {
		return Config{}, err
	}
	cfg.Mode = mode
	return cfg, nil
}
