// Package cmd provides the CLI commands for the DRES client.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sentinel-Gate/dres-client/internal/adapter/outbound/dresapi"
	"github.com/Sentinel-Gate/dres-client/internal/config"
)

var (
	dataDir        string
	envFile        string
	requestTimeout time.Duration
	logLevel       string
	logFormat      string
	outputFormat   string
	traceEnabled   bool
	metricsEnabled bool
)

// current holds the wiring built for the running command.
var current *app

var rootCmd = &cobra.Command{
	Use:   "dres-client",
	Short: "DRES client - talk to a DRES evaluation server",
	Long: `dres-client logs in to a DRES (Distributed Retrieval Evaluation Server)
instance, lists evaluations and submits answers and logs to them.

Configuration:
  Connection settings are read from dresapi.json in the data directory,
  credentials from credentials.json next to it. The data directory is
  --data-dir, $DRES_DATA_DIR, $XDG_DATA_HOME/dres or ~/.local/share/dres.

  Environment variables override file values with the DRES_ prefix.
  Example: DRES_HOST=dres.example.org DRES_PORT=443 DRES_TLS=true

Commands:
  config       Show, save or locate the configuration
  login        Log in and print the user
  evaluations  List the evaluations visible to the user
  task         Print the current task of an evaluation
  submit       Submit an item or a text answer
  log          Send result or interaction logs
  status       Print the server time
  version      Print version information`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: teardownApp,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&dataDir, "data-dir", "", "directory holding dresapi.json and credentials.json")
	flags.StringVar(&envFile, "env-file", "", "load DRES_* variables from a dotenv file")
	flags.DurationVar(&requestTimeout, "timeout", dresapi.DefaultTimeout, "timeout for each request to DRES")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json, pretty)")
	flags.StringVarP(&outputFormat, "output", "o", "json", "output format (json, yaml)")
	flags.BoolVar(&traceEnabled, "trace", false, "print a span per DRES call to stderr")
	flags.BoolVar(&metricsEnabled, "metrics", false, "print call metrics to stderr on exit")
}

// app is the per-invocation wiring shared by all commands.
type app struct {
	logger         *slog.Logger
	resolver       *config.Resolver
	registry       *prometheus.Registry
	metrics        *dresapi.Metrics
	tracerProvider *sdktrace.TracerProvider
}

func setupApp(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	if err := checkOutputFormat(outputFormat); err != nil {
		return err
	}

	logger, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	a := &app{
		logger:   logger,
		resolver: config.NewResolver(config.NewPaths(dataDir), logger),
		registry: registry,
		metrics:  dresapi.NewMetrics(registry),
	}

	if traceEnabled {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(cmd.ErrOrStderr()),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		a.tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	}

	current = a
	return nil
}

func teardownApp(cmd *cobra.Command, _ []string) error {
	a := current
	if a == nil {
		return nil
	}
	current = nil

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(cmd.Context()); err != nil {
			return fmt.Errorf("failed to flush traces: %w", err)
		}
	}
	if metricsEnabled {
		return writeMetrics(cmd.ErrOrStderr(), a.registry)
	}
	return nil
}

// newLogger builds the slog logger for the given level and format.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl := parseLogLevel(level)
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case "pretty":
		return slog.New(tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.TimeOnly})), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q (want text, json or pretty)", format)
	}
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// writeMetrics dumps the registry in the Prometheus text format.
func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}
