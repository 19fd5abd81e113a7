package resynth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// errNoAudio marks an entry whose synthesis returned an empty clip.
var errNoAudio = errors.New("synthesis returned no audio")

const (
	defaultConcurrency = 4
	defaultSampleRate  = 16000
)

// Option is a functional option for Resynthesizer.
type Option func(*Resynthesizer)

// WithOptions sets the reconciliation options. Default: DefaultOptions().
func WithOptions(o Options) Option {
	return func(r *Resynthesizer) { r.opts = o }
}

// WithConcurrency bounds the number of concurrent Synthesize calls.
// Default: 4.
func WithConcurrency(n int) Option {
	return func(r *Resynthesizer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithSampleRate sets the timeline sample rate. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(r *Resynthesizer) {
		if rate > 0 {
			r.sampleRate = rate
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resynthesizer) { r.log = l }
}

// Resynthesizer turns a subtitle track into a timeline of synthesized speech.
// Safe for concurrent use.
type Resynthesizer struct {
	tts         tts.Provider
	opts        Options
	concurrency int
	sampleRate  int
	log         *slog.Logger
}

// New returns a Resynthesizer that synthesizes with p.
func New(p tts.Provider, opts ...Option) *Resynthesizer {
	r := &Resynthesizer{
		tts:         p,
		opts:        DefaultOptions(),
		concurrency: defaultConcurrency,
		sampleRate:  defaultSampleRate,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Skipped records an entry left silent because synthesis or reconciliation
// failed.
type Skipped struct {
	Index int
	Err   error
}

// EntryAdjustment pairs a subtitle index with its reconciliation.
type EntryAdjustment struct {
	Index int
	Adjustment
}

// Result is the outcome of Run.
type Result struct {
	// Audio is the assembled mono timeline, as long as the latest entry end.
	Audio audio.Buffer

	// Adjustments lists the reconciliation of each placed entry, in entry
	// order.
	Adjustments []EntryAdjustment

	// Skipped lists entries that were left silent, in entry order.
	Skipped []Skipped
}

// Run synthesizes every entry with voice, reconciles each clip to its
// entry's duration and assembles the timeline.
//
// Entries with invalid timing fail the whole run with ErrInvalidTarget before
// any synthesis. A provider quota that cannot cover the text fails with
// tts.ErrInsufficientCredits. Per-entry failures (synthesis error, empty
// clip, blank text) are soft: the entry is left silent and reported in
// Result.Skipped. Cancellation aborts the run.
func (r *Resynthesizer) Run(ctx context.Context, entries []types.SubtitleEntry, voice types.VoiceProfile) (Result, error) {
	if err := r.opts.Validate(); err != nil {
		return Result{}, err
	}
	var errs []error
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := e.Segment().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", e.Index, err))
			continue
		}
		if e.EndMs() <= e.StartMs() {
			errs = append(errs, fmt.Errorf("entry %d: window shorter than 1 ms", e.Index))
			continue
		}
		texts = append(texts, e.Text)
	}
	if len(errs) > 0 {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidTarget, errors.Join(errs...))
	}
	if err := tts.CheckQuota(ctx, r.tts, texts...); err != nil {
		return Result{}, fmt.Errorf("resynth: %w", err)
	}

	var (
		mu          sync.Mutex
		skipped     []Skipped
		adjustments []EntryAdjustment
		empty       = audio.Buffer{SampleRate: r.sampleRate, Channels: 1}
		placements  = make([]Placement, len(entries))
	)
	skip := func(e types.SubtitleEntry, err error) {
		r.log.WarnContext(ctx, "resynth: entry left silent", "index", e.Index, "err", err)
		mu.Lock()
		skipped = append(skipped, Skipped{Index: e.Index, Err: err})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, e := range entries {
		placements[i] = Placement{Clip: empty, TargetStartMs: e.StartMs(), TargetEndMs: e.EndMs()}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text := strings.TrimSpace(e.Text)
			if text == "" {
				skip(e, tts.ErrEmptyText)
				return nil
			}
			clip, err := r.tts.Synthesize(gctx, text, voice)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				skip(e, err)
				return nil
			}
			if clip.IsEmpty() {
				skip(e, errNoAudio)
				return nil
			}
			fitted, adj, err := reconcile(clip, placements[i].DurationMs(), r.opts)
			if err != nil {
				skip(e, err)
				return nil
			}
			placements[i].Clip = fitted
			mu.Lock()
			adjustments = append(adjustments, EntryAdjustment{Index: e.Index, Adjustment: adj})
			mu.Unlock()
			r.log.DebugContext(gctx, "resynth: entry reconciled",
				"index", e.Index, "action", string(adj.Action), "factor", adj.Factor, "method", string(adj.Method))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("resynth: %w", err)
	}

	out, truncated, err := assemble(placements, r.sampleRate)
	if err != nil {
		return Result{}, err
	}
	for i, n := range truncated {
		if n > 0 {
			r.log.DebugContext(ctx, "resynth: clip ran past the timeline", "index", entries[i].Index, "frames", n)
		}
	}

	slices.SortFunc(skipped, func(a, b Skipped) int { return a.Index - b.Index })
	slices.SortFunc(adjustments, func(a, b EntryAdjustment) int { return a.Index - b.Index })
	return Result{Audio: out, Adjustments: adjustments, Skipped: skipped}, nil
}
