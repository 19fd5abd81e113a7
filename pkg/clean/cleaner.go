package clean

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio/dsp"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

var (
	// ErrInvalidParams is returned when cleaning parameters are out of range.
	ErrInvalidParams = errors.New("clean: invalid parameters")

	// ErrFramesUnclassified marks the soft warning recorded when some frames
	// failed classification and were treated as silence.
	ErrFramesUnclassified = errors.New("clean: frames treated as silence")

	// ErrSegmentDetectorFailed marks the soft warning recorded when the
	// segment detector failed and frame classification was used instead.
	ErrSegmentDetectorFailed = errors.New("clean: segment detector failed")
)

// Mode selects how non-speech audio is removed.
type Mode string

const (
	// ModeMask mutes non-speech audio and keeps the original length, so the
	// cleaned track stays aligned with the video.
	ModeMask Mode = "mask"

	// ModeDrop cuts non-speech audio out and joins the speech segments.
	ModeDrop Mode = "drop"
)

// Params are the per-invocation cleaning settings.
type Params struct {
	// NoiseSensitivity is the proportion of attenuation applied to bins
	// below the noise threshold, in [0, 1]. Default: 0.2.
	NoiseSensitivity float64

	// SkipNoiseReduction disables the noise reduction stage.
	SkipNoiseReduction bool

	// VADAggressiveness is passed to the frame classifier, in [0, 3].
	// Default: 1.
	VADAggressiveness int

	// Detector configures framing and hysteresis.
	Detector DetectorConfig

	// Mode selects muting or dropping of non-speech audio. Default: mask.
	Mode Mode
}

// DefaultParams returns the default cleaning settings.
func DefaultParams() Params {
	return Params{
		NoiseSensitivity:  0.2,
		VADAggressiveness: 1,
		Detector:          DefaultDetectorConfig(),
		Mode:              ModeMask,
	}
}

// Validate checks every field and reports all problems at once.
func (p Params) Validate() error {
	var errs []error
	if math.IsNaN(p.NoiseSensitivity) || p.NoiseSensitivity < 0 || p.NoiseSensitivity > 1 {
		errs = append(errs, fmt.Errorf("noise sensitivity must be within [0, 1], got %v", p.NoiseSensitivity))
	}
	if p.VADAggressiveness < 0 || p.VADAggressiveness > 3 {
		errs = append(errs, fmt.Errorf("vad aggressiveness must be within [0, 3], got %d", p.VADAggressiveness))
	}
	if err := p.Detector.Validate(); err != nil {
		errs = append(errs, err)
	}
	if p.Mode != ModeMask && p.Mode != ModeDrop {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeMask, ModeDrop, p.Mode))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidParams, errors.Join(errs...))
}

// Detection is the outcome of speech detection on one buffer.
type Detection struct {
	// Audio is the analysed signal: the input converted to 16 kHz mono and,
	// unless skipped or unavailable, noise-reduced.
	Audio audio.Buffer

	// Segments are the detected speech spans, in seconds.
	Segments []types.Segment

	// Flags holds the per-frame classification. Nil when a segment detector
	// was used instead of a frame engine.
	Flags []bool

	// FrameErrors counts frames whose classification failed and were
	// treated as silence.
	FrameErrors int

	// Warnings lists soft failures that did not stop processing.
	Warnings []error
}

// SpeechFrames returns how many frames were classified as speech.
func (d Detection) SpeechFrames() int {
	n := 0
	for _, f := range d.Flags {
		if f {
			n++
		}
	}
	return n
}

// Result is the outcome of Clean.
type Result struct {
	Detection

	// Cleaned is the output audio at 16 kHz mono.
	Cleaned audio.Buffer
}

// Option is a functional option for Cleaner.
type Option func(*Cleaner)

// WithSegmentDetector makes the Cleaner use d for speech detection instead
// of frame classification and hysteresis. If d fails, the Cleaner falls back
// to its frame engine and records a warning.
func WithSegmentDetector(d vad.SegmentDetector) Option {
	return func(c *Cleaner) { c.segments = d }
}

// WithNoiseReducer overrides the noise reducer settings.
func WithNoiseReducer(r dsp.NoiseReducer) Option {
	return func(c *Cleaner) { c.reducer = r }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cleaner) { c.log = l }
}

// Cleaner runs the cleaning pipeline. It holds no per-request state and is
// safe for concurrent use when its vad.Engine is.
type Cleaner struct {
	engine   vad.Engine
	segments vad.SegmentDetector
	reducer  dsp.NoiseReducer
	log      *slog.Logger
}

// New returns a Cleaner classifying frames with engine.
func New(engine vad.Engine, opts ...Option) *Cleaner {
	c := &Cleaner{engine: engine, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Clean converts buf to 16 kHz mono, reduces noise, detects speech, and mutes
// or drops everything else according to p.Mode.
//
// Noise reduction failures and per-frame classification failures are soft:
// they are reported in Result.Warnings and Result.FrameErrors. Invalid
// parameters, empty or malformed input, and cancellation are hard errors.
func (c *Cleaner) Clean(ctx context.Context, buf audio.Buffer, p Params) (Result, error) {
	det, err := c.DetectSpeech(ctx, buf, p)
	if err != nil {
		return Result{}, err
	}

	var cleaned audio.Buffer
	switch p.Mode {
	case ModeDrop:
		cleaned, err = audio.KeepOnly(det.Audio, det.Segments)
	default:
		cleaned, err = audio.Mask(det.Audio, det.Segments)
	}
	if err != nil {
		return Result{}, fmt.Errorf("clean: edit: %w", err)
	}
	if len(det.Segments) == 0 {
		c.log.InfoContext(ctx, "clean: no speech detected", "duration_s", det.Audio.Seconds())
	}
	return Result{Detection: det, Cleaned: cleaned}, nil
}

// DetectSpeech runs the analysis half of Clean: format conversion, noise
// reduction and speech detection, without editing the audio.
func (c *Cleaner) DetectSpeech(ctx context.Context, buf audio.Buffer, p Params) (Detection, error) {
	if err := p.Validate(); err != nil {
		return Detection{}, err
	}
	if err := buf.Validate(); err != nil {
		return Detection{}, fmt.Errorf("clean: %w", err)
	}
	if buf.IsEmpty() {
		return Detection{}, fmt.Errorf("clean: %w", audio.ErrEmptyBuffer)
	}

	var det Detection
	mono := audio.Normalize(buf, audio.VADFormat)
	if buf.Format() != audio.VADFormat {
		c.log.DebugContext(ctx, "clean: converted input", "from", buf.Format().String(), "to", audio.VADFormat.String())
	}

	det.Audio = mono
	if !p.SkipNoiseReduction {
		denoised, err := c.reducer.Reduce(ctx, mono, p.NoiseSensitivity)
		switch {
		case errors.Is(err, dsp.ErrNoiseReductionUnavailable):
			c.log.WarnContext(ctx, "clean: noise reduction skipped", "err", err)
			det.Warnings = append(det.Warnings, err)
		case err != nil:
			return Detection{}, fmt.Errorf("clean: noise reduction: %w", err)
		default:
			det.Audio = denoised
		}
	}

	if c.segments != nil {
		segs, err := c.segments.DetectSegments(ctx, det.Audio)
		if err == nil {
			det.Segments = audio.MergeSegments(segs)
			return det, nil
		}
		if ctx.Err() != nil {
			return Detection{}, fmt.Errorf("clean: detect segments: %w", ctx.Err())
		}
		if c.engine == nil {
			return Detection{}, fmt.Errorf("clean: detect segments: %w", err)
		}
		c.log.WarnContext(ctx, "clean: segment detector failed, using frame classifier", "err", err)
		det.Warnings = append(det.Warnings, fmt.Errorf("%w: %w", ErrSegmentDetectorFailed, err))
	}

	frames, err := audio.ToFrames(det.Audio, p.Detector.FrameMs)
	if err != nil {
		return Detection{}, fmt.Errorf("clean: framing: %w", err)
	}
	if c.engine == nil {
		return Detection{}, errors.New("clean: no vad engine configured")
	}
	sess, err := c.engine.NewSession(vad.Config{
		SampleRate:     audio.VADFormat.SampleRate,
		FrameSizeMs:    p.Detector.FrameMs,
		Aggressiveness: p.VADAggressiveness,
	})
	if err != nil {
		return Detection{}, fmt.Errorf("clean: vad session: %w", err)
	}
	defer sess.Close()

	flags, frameErrs, err := Classify(ctx, sess, frames, p.Detector.FrameMs, c.log)
	if err != nil {
		return Detection{}, err
	}
	if frameErrs > 0 {
		det.Warnings = append(det.Warnings, fmt.Errorf("%w: %d of %d failed classification", ErrFramesUnclassified, frameErrs, len(frames)))
	}
	det.Flags = flags
	det.FrameErrors = frameErrs
	det.Segments = Detect(flags, p.Detector)
	return det, nil
}

// Classify runs sess over frames and returns one speech flag per frame. A
// frame whose classification fails is treated as silence and counted; the
// first failure is logged. Cancellation is checked about once per second of
// audio.
func Classify(ctx context.Context, sess vad.SessionHandle, frames []audio.Frame, frameMs int, log *slog.Logger) ([]bool, int, error) {
	if log == nil {
		log = slog.Default()
	}
	checkEvery := max(1000/max(frameMs, 1), 1)
	flags := make([]bool, len(frames))
	failed := 0
	for i, f := range frames {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, failed, fmt.Errorf("clean: classify: %w", err)
			}
		}
		ev, err := sess.ProcessFrame(f.Bytes())
		if err != nil {
			if failed == 0 {
				log.WarnContext(ctx, "clean: frame classification failed, treating as silence", "frame", f.Index, "err", err)
			}
			failed++
			continue
		}
		flags[i] = ev.Speech
	}
	return flags, failed, nil
}
