package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/core"
	"github.com/joseph-ayodele/policy-extractor/internal/metrics"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
)

const defaultDSN = "policies.db"

// app is the state shared by all subcommands.
type app struct {
	configPath  string
	logFormat   string
	logLevel    string
	metricsAddr string
	dsn         string

	cfg     *common.Config
	logger  *slog.Logger
	metrics *metrics.Recorder
	server  *http.Server

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "policyctl",
		Short:         "Extract structured fields from insurance policy documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			a.teardown()
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: json or text")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.StringVar(&a.dsn, "db", "", "database DSN: postgres:// URL or sqlite file (default "+defaultDSN+")")

	root.AddCommand(
		newExtractCmd(a),
		newTextCmd(a),
		newBatchCmd(a),
		newWatchCmd(a),
		newExportCmd(a),
		newRulesCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := common.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	if a.dsn != "" {
		cfg.Database.DSN = a.dsn
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = defaultDSN
	}
	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}
	a.cfg = cfg

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.logger = newLogger(a.stderr, cfg.Log.Format, level)
	slog.SetDefault(a.logger)

	a.metrics = metrics.NewRecorder()
	if cfg.Metrics.Addr != "" {
		if err := a.serveMetrics(cmd.Context(), cfg.Metrics.Addr); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) teardown() {
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("metrics server shutdown", "error", err)
	}
}

func (a *app) serveMetrics(ctx context.Context, addr string) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, usagef("invalid log level %q", s)
	}
	return level, nil
}

// newLogger writes to stderr so stdout stays machine-readable.
func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) processor(clock common.Clock) (*core.Processor, error) {
	return core.Build(a.cfg, a.logger, core.Deps{Clock: clock, Metrics: a.metrics})
}

func (a *app) openStore(ctx context.Context) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.Config{
		DSN:             a.cfg.Database.DSN,
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
