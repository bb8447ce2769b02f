package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"evetl/internal/config"
	"evetl/internal/logging"
	"evetl/internal/metrics"
	"evetl/internal/metrics/datadog"
	"evetl/internal/metrics/prompush"
	"evetl/internal/processor"
)

var errInvalidConfig = errors.New("configuration is invalid")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evetl -i INPUT -o OUTPUT [flags]",
		Short: "Filter electric vehicle registrations by electric range",
		Long: `evetl reads the electric vehicle population CSV, drops rows that are
malformed or miss a required field, and writes the records whose electric
range is at least --min-range to the output CSV in input order.

Every flag can also be set through an EVETL_* environment variable, e.g.
EVETL_MIN_RANGE=250 or EVETL_MIRROR_DSN=evs.db. Flags win over the
environment.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	issues := cfg.Validate()
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errInvalidConfig
	}
	if cfg.ValidateOnly {
		fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
		return nil
	}

	log := logging.NewLogger(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: stderr})

	flush := setupMetrics(cfg, logging.ComponentLogger(log, "metrics"))
	defer flush()

	_, err = processor.Run(cmd.Context(), cfg, processor.Deps{Logger: logging.ComponentLogger(log, "etl")})
	return err
}

// setupMetrics installs the configured metrics backend and returns the
// function that flushes it. A backend that fails to initialize is logged and
// metrics stay disabled.
func setupMetrics(cfg config.Config, log zerolog.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case config.MetricsPushgateway:
		var pb *prompush.Backend
		pb, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
		if err == nil {
			if host, herr := os.Hostname(); herr == nil {
				pb = pb.Grouping("instance", host)
			}
			b = pb
		}
	case config.MetricsDatadog:
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.StatsdAddr,
			Namespace:  "evetl.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		log.Debug().Str("backend", cfg.Metrics.Backend).Msg("metrics disabled")
		return func() {}
	}
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.Metrics.Backend).Msg("metrics backend init failed; metrics disabled")
		return func() {}
	}

	log.Info().Str("backend", cfg.Metrics.Backend).Str("job", cfg.Job).Msg("metrics enabled")
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("metrics flush failed")
		}
	}
}

// run executes the root command with args, writing to out and errOut.
func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}
