package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/anujsonawane60/my-video-pro-app/internal/config"
	"github.com/anujsonawane60/my-video-pro-app/internal/health"
	"github.com/anujsonawane60/my-video-pro-app/internal/observe"
	"github.com/anujsonawane60/my-video-pro-app/internal/pipeline"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

type commandContext struct {
	configFlag   string
	logLevelFlag string
	metricsFlag  string

	stdout io.Writer
	stderr io.Writer

	// media replaces the ffmpeg collaborator when set.
	media pipeline.Media

	// register adds provider factories to a fresh registry. Defaults to the
	// built-in providers.
	register func(reg *config.Registry, f *providerFactory)

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		register: func(reg *config.Registry, f *providerFactory) { f.register(reg) },
	}
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(newCommandContext())
}

func newRootCommandWith(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "videopro",
		Short:         "Clean, transcribe and re-voice the audio of videos",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(ctx.stdout)
	rootCmd.SetErr(ctx.stderr)

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (defaults apply when omitted)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&ctx.metricsFlag, "metrics-addr", "", "Serve Prometheus metrics on this address while the job runs")

	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newCleanCommand(ctx))
	rootCmd.AddCommand(newTranscribeCommand(ctx))
	rootCmd.AddCommand(newResynthCommand(ctx))
	rootCmd.AddCommand(newConvertCommand(ctx))
	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newProvidersCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))

	return rootCmd
}

// ensureConfig loads the configuration once and applies the flag overrides.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg := &config.Config{}
		if path := strings.TrimSpace(c.configFlag); path != "" {
			loaded, err := config.Load(path)
			if errors.Is(err, fs.ErrNotExist) {
				c.configErr = fmt.Errorf("config file %q not found; omit --config to run with defaults", path)
				return
			}
			if err != nil {
				c.configErr = err
				return
			}
			cfg = loaded
		}
		if lvl := config.LogLevel(strings.ToLower(strings.TrimSpace(c.logLevelFlag))); lvl != "" {
			if !lvl.IsValid() {
				c.configErr = fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", c.logLevelFlag)
				return
			}
			cfg.Server.LogLevel = lvl
		}
		if addr := strings.TrimSpace(c.metricsFlag); addr != "" {
			cfg.Server.MetricsAddr = addr
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withPipeline builds the telemetry, providers and pipeline for one command,
// runs fn, and tears everything down again. fn's context is cancelled on
// SIGINT or SIGTERM.
func (c *commandContext) withPipeline(cmd *cobra.Command, fn func(ctx context.Context, p *pipeline.Pipeline) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := newLogger(c.stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, shutdownTelemetry, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown error", "err", err)
		}
	}()

	factory := &providerFactory{metrics: metrics, log: logger}
	reg := config.NewRegistry()
	c.register(reg, factory)
	providers, err := buildProviders(cfg, reg, metrics, logger)
	if err != nil {
		for _, closeFn := range factory.closers {
			_ = closeFn()
		}
		return err
	}

	opts := []pipeline.Option{pipeline.WithMetrics(metrics), pipeline.WithLogger(logger)}
	for _, closeFn := range factory.closers {
		opts = append(opts, pipeline.WithCloser(closeFn))
	}
	if c.media != nil {
		opts = append(opts, pipeline.WithMedia(c.media))
	}
	p, err := pipeline.New(cfg, providers, opts...)
	if err != nil {
		for _, closeFn := range factory.closers {
			_ = closeFn()
		}
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.Shutdown(sctx); err != nil {
			logger.Warn("pipeline shutdown error", "err", err)
		}
	}()

	if addr := cfg.Server.MetricsAddr; addr != "" && !cfg.Telemetry.Disabled {
		stopMetrics, err := serveMetrics(addr, health.New(c.readinessCheckers(cfg, providers)), logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	return fn(ctx, p)
}

// initTelemetry installs the OTel SDK providers unless telemetry is disabled
// and returns the instruments to record into.
func initTelemetry(ctx context.Context, cfg *config.Config) (*observe.Metrics, func(context.Context) error, error) {
	if cfg.Telemetry.Disabled {
		m, err := observe.NewMetrics(noop.NewMeterProvider())
		return m, func(context.Context) error { return nil }, err
	}
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Attributes:     cfg.Telemetry.Attributes,
		SampleRatio:    cfg.Telemetry.TraceSampleRatio,
	})
	if err != nil {
		return nil, nil, err
	}
	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, err
	}
	return m, shutdown, nil
}

// serveMetrics exposes the Prometheus registry and the health routes on addr
// until the returned function is called.
func serveMetrics(addr string, checks *health.Handler, log *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	checks.Register(mux)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "err", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func newLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
