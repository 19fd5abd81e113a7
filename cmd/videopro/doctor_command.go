package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/anujsonawane60/my-video-pro-app/internal/config"
	"github.com/anujsonawane60/my-video-pro-app/internal/health"
	"github.com/anujsonawane60/my-video-pro-app/internal/media"
	"github.com/anujsonawane60/my-video-pro-app/internal/observe"
	"github.com/anujsonawane60/my-video-pro-app/internal/pipeline"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and the configured providers are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := newLogger(ctx.stderr, cfg.Server.LogLevel)
			metrics, err := observe.NewMetrics(noop.NewMeterProvider())
			if err != nil {
				return err
			}
			factory := &providerFactory{metrics: metrics, log: logger}
			defer func() {
				for _, closeFn := range factory.closers {
					_ = closeFn()
				}
			}()
			reg := config.NewRegistry()
			ctx.register(reg, factory)
			providers, buildErr := buildProviders(cfg, reg, metrics, logger)

			checkers := append([]health.Checker{{
				Name:  "providers",
				Check: func(context.Context) error { return buildErr },
			}}, ctx.readinessCheckers(cfg, providers)...)
			sts := health.New(checkers).Run(cmd.Context())

			rows := make([][]string, 0, len(sts))
			for _, s := range sts {
				state := "ok"
				if !s.OK() {
					state = "FAIL: " + s.Err.Error()
				}
				rows = append(rows, []string{s.Name, state, s.Elapsed.Round(time.Millisecond).String()})
			}
			fmt.Fprintln(ctx.stdout, renderTable(
				[]string{"Check", "Result", "Time"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return health.Err(sts)
		},
	}
}

// readinessCheckers probes the dependencies of a job. providers may be nil.
func (c *commandContext) readinessCheckers(cfg *config.Config, providers *pipeline.Providers) []health.Checker {
	type checker interface {
		Check(ctx context.Context) error
	}
	var ffmpeg checker = media.New(media.WithBinary(cfg.Media.FFmpegPath))
	if m, ok := c.media.(checker); ok {
		ffmpeg = m
	}
	checks := []health.Checker{{Name: "ffmpeg", Check: ffmpeg.Check}}

	if providers != nil && providers.TTS != nil {
		p := providers.TTS
		checks = append(checks, health.Checker{
			Name:  "tts quota",
			Check: func(ctx context.Context) error { return tts.CheckQuota(ctx, p, "x") },
		})
	}
	return checks
}
