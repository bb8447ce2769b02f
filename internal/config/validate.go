package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path names the flag the
// finding is about.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be returned as one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate performs static checks over c. It does not touch the
// filesystem or any network endpoint.
func (c Config) Validate() []Issue {
	var issues []Issue
	errorf := func(path, format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)})
	}
	warnf := func(path, format string, args ...any) {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Input) == "" {
		errorf(FlagInput, "input path is required")
	}
	if strings.TrimSpace(c.Output) == "" {
		errorf(FlagOutput, "output path is required")
	}
	if c.Input != "" && c.Output != "" && filepath.Clean(c.Input) == filepath.Clean(c.Output) {
		errorf(FlagOutput, "output must not be the input file")
	}

	if !c.Mode.Valid() {
		errorf(FlagMode, "unknown mode %s", c.Mode)
	}
	if c.BatchSize <= 0 {
		if c.Mode == Batched {
			errorf(FlagBatchSize, "batch size must be positive, got %d", c.BatchSize)
		} else {
			warnf(FlagBatchSize, "batch size %d is ignored outside batched mode", c.BatchSize)
		}
	}
	if c.Workers < 0 {
		errorf(FlagWorkers, "workers must be >= 0, got %d", c.Workers)
	}
	if !c.SkipInvalid {
		warnf(FlagSkipInvalid, "invalid rows are always skipped; --skip-invalid=false has no effect")
	}
	if strings.TrimSpace(c.Job) == "" {
		errorf(FlagJob, "job must not be empty; it labels metrics and log lines")
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errorf(FlagLogFormat, "log format must be console or json, got %q", c.Log.Format)
	}

	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateMirror(c.Mirror)...)
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", MetricsNone:
	case MetricsPushgateway:
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: FlagPushgatewayURL,
				Message: "pushgateway backend requires --pushgateway-url"})
		}
	case MetricsDatadog:
		if strings.TrimSpace(m.StatsdAddr) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: FlagStatsdAddr,
				Message: "datadog backend requires --statsd-addr"})
		}
	default:
		issues = append(issues, Issue{Severity: SeverityError, Path: FlagMetricsBackend,
			Message: fmt.Sprintf("unknown metrics backend %q (want none, pushgateway or datadog)", m.Backend)})
	}
	return issues
}

func validateMirror(m Mirror) []Issue {
	if !m.Enabled() {
		if m.DSN != "" {
			return []Issue{{Severity: SeverityWarning, Path: FlagMirrorDSN,
				Message: "mirror DSN is set but --mirror-kind is empty; mirroring is disabled"}}
		}
		return nil
	}

	var issues []Issue
	switch m.Kind {
	case "sqlite", "postgres", "mssql":
	default:
		issues = append(issues, Issue{Severity: SeverityError, Path: FlagMirrorKind,
			Message: fmt.Sprintf("unsupported mirror kind %q (want sqlite, postgres or mssql)", m.Kind)})
	}
	if strings.TrimSpace(m.DSN) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: FlagMirrorDSN,
			Message: "mirror DSN is required when --mirror-kind is set"})
	}
	if !tableNameRe.MatchString(m.Table) {
		issues = append(issues, Issue{Severity: SeverityError, Path: FlagMirrorTable,
			Message: fmt.Sprintf("mirror table %q must be a plain or schema-qualified identifier", m.Table)})
	}
	if m.BatchSize <= 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: FlagMirrorBatch,
			Message: fmt.Sprintf("mirror batch must be positive, got %d", m.BatchSize)})
	}
	return issues
}
