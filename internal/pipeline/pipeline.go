// Package pipeline wires the cleaning, transcription and resynthesis engines
// into per-request jobs.
//
// A Pipeline owns the configured providers for its lifetime: New builds the
// engines from a config and a Providers set, the job methods (Detect, Clean,
// Transcribe, Resynthesize, ConvertVoice, Process) each run one request, and
// Shutdown releases provider resources.
//
// Every job gets a UUID, a span, and a Report. Soft failures are collected as
// Warnings and never abort a job; hard failures are returned as *StageError
// naming the failing stage.
//
// For testing, inject test doubles via functional options (WithMedia,
// WithMetrics) and the Providers struct.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/anujsonawane60/my-video-pro-app/internal/config"
	"github.com/anujsonawane60/my-video-pro-app/internal/media"
	"github.com/anujsonawane60/my-video-pro-app/internal/observe"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/clean"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
)

// ErrNotConfigured is returned when a job needs a provider that is not set.
var ErrNotConfigured = errors.New("pipeline: provider not configured")

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT      stt.Provider
	TTS      tts.Provider
	VAD      vad.Engine
	Segments vad.SegmentDetector
}

// Media is the video container collaborator.
type Media interface {
	ExtractAudio(ctx context.Context, video string) (audio.Buffer, error)
	Mux(ctx context.Context, req media.MuxRequest) error
}

// Pipeline runs jobs against a fixed configuration and provider set. It is
// safe for concurrent use.
type Pipeline struct {
	cfg       *config.Config
	providers *Providers
	cleaner   *clean.Cleaner
	media     Media
	metrics   *observe.Metrics
	log       *slog.Logger

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*Pipeline)

// WithMedia injects the media collaborator instead of an ffmpeg-backed one.
func WithMedia(m Media) Option {
	return func(p *Pipeline) { p.media = m }
}

// WithMetrics sets the metric instruments. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the base logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithCloser registers fn to run during Shutdown, e.g. to release a model
// handle held by a provider.
func WithCloser(fn func() error) Option {
	return func(p *Pipeline) { p.closers = append(p.closers, fn) }
}

// New creates a Pipeline. cfg may be nil, in which case every setting takes
// its default.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*Pipeline, error) {
	if providers == nil {
		return nil, errors.New("pipeline: providers must not be nil")
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	p := &Pipeline{
		cfg:       cfg,
		providers: providers,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.media == nil {
		p.media = media.New(
			media.WithBinary(cfg.Media.FFmpegPath),
			media.WithWorkDir(cfg.Media.WorkDir),
			media.WithLogger(p.log),
		)
	}

	if err := cfg.Cleaning.Params().Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err := cfg.Resynth.Options().Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	cleanOpts := []clean.Option{clean.WithLogger(p.log)}
	if providers.Segments != nil {
		cleanOpts = append(cleanOpts, clean.WithSegmentDetector(providers.Segments))
	}
	p.cleaner = clean.New(providers.VAD, cleanOpts...)
	return p, nil
}

// Shutdown runs the registered closers in order. Safe to call more than once;
// only the first call has effect.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	var shutdownErr error
	p.stopOnce.Do(func() {
		var errs []error
		for i, closer := range p.closers {
			if err := ctx.Err(); err != nil {
				p.log.Warn("pipeline: shutdown deadline exceeded", "remaining", len(p.closers)-i)
				errs = append(errs, err)
				break
			}
			if err := closer(); err != nil {
				p.log.Warn("pipeline: closer error", "index", i, "err", err)
				errs = append(errs, err)
			}
		}
		shutdownErr = errors.Join(errs...)
	})
	return shutdownErr
}

// LoadAudio reads a WAV file directly and extracts the audio track of any
// other file with the media collaborator.
func (p *Pipeline) LoadAudio(ctx context.Context, path string) (audio.Buffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return audio.ReadWAVFile(path)
	}
	return p.media.ExtractAudio(ctx, path)
}

// job carries the per-request state threaded through the stages.
type job struct {
	p      *Pipeline
	op     string
	start  time.Time
	span   trace.Span
	log    *slog.Logger
	report Report
}

func (p *Pipeline) startJob(ctx context.Context, op string) (context.Context, *job) {
	id := uuid.NewString()
	ctx, span := observe.StartSpan(ctx, "job."+op, trace.WithAttributes(observe.Attr("job_id", id)))
	p.metrics.ActiveJobs.Add(ctx, 1)
	j := &job{
		p:      p,
		op:     op,
		start:  time.Now(),
		span:   span,
		log:    p.log.With("job_id", id, "op", op),
		report: Report{JobID: id},
	}
	if cid := observe.CorrelationID(ctx); cid != "" {
		j.log = j.log.With("trace_id", cid)
	}
	j.log.InfoContext(ctx, "job started")
	return ctx, j
}

func (j *job) finish(ctx context.Context, err error) {
	j.p.metrics.ActiveJobs.Add(ctx, -1)
	if err != nil {
		j.span.RecordError(err)
	}
	j.span.End()
	if err != nil {
		j.log.ErrorContext(ctx, "job failed", "err", err, "elapsed", time.Since(j.start))
		return
	}
	j.log.InfoContext(ctx, "job finished",
		"elapsed", time.Since(j.start),
		"warnings", len(j.report.Warnings),
		"output_s", j.report.OutputSeconds,
	)
}

// stage runs fn as the named stage. A returned error is wrapped in a
// *StageError unless it already is one.
func (j *job) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	sctx, end := observe.StartStage(ctx, j.p.metrics, name)
	err := fn(sctx)
	end(err)
	j.report.Stages = append(j.report.Stages, StageTiming{Stage: name, Duration: time.Since(start)})
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{Stage: name, Err: err}
}

// warn records a soft failure.
func (j *job) warn(ctx context.Context, stage, kind string, err error) {
	j.report.Warnings = append(j.report.Warnings, Warning{Stage: stage, Kind: kind, Err: err})
	j.p.metrics.RecordSoftWarning(ctx, stage, kind)
	j.log.WarnContext(ctx, "soft failure", "stage", stage, "kind", kind, "err", err)
}
