// Package resynth rebuilds a narration track from per-subtitle synthesized
// clips. Each clip is reconciled against its subtitle's timing window
// (padding with silence or time-compressing) and then mixed into a silent
// timeline at the subtitle's exact start, so one imperfect clip never shifts
// the ones after it.
package resynth

import (
	"errors"
	"fmt"
	"math"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio/dsp"
)

var (
	// ErrInvalidTarget is returned for a target duration ≤ 0 or a placement
	// with a negative start or an end not after its start.
	ErrInvalidTarget = errors.New("resynth: invalid target")

	// ErrInvalidOptions is returned when Options fail validation.
	ErrInvalidOptions = errors.New("resynth: invalid options")
)

// StretchMethod names a time-compression algorithm.
type StretchMethod string

const (
	// StretchPhaseVocoder keeps pitch using an STFT phase vocoder. Falls back
	// to StretchOLA, then StretchResample, for clips too short to analyse.
	StretchPhaseVocoder StretchMethod = "phase_vocoder"

	// StretchOLA uses windowed overlap-add. Falls back to StretchResample.
	StretchOLA StretchMethod = "ola"

	// StretchResample plays the clip faster, raising pitch.
	StretchResample StretchMethod = "resample"
)

// fallbackChain lists the methods tried, in order, for each choice.
var fallbackChain = map[StretchMethod][]StretchMethod{
	StretchPhaseVocoder: {StretchPhaseVocoder, StretchOLA, StretchResample},
	StretchOLA:          {StretchOLA, StretchResample},
	StretchResample:     {StretchResample},
}

// Options configures duration reconciliation.
type Options struct {
	// ToleranceMs is the largest length mismatch left untouched. Default: 50.
	ToleranceMs int

	// MaxSpeedFactor caps time compression. Default: 1.5.
	MaxSpeedFactor float64

	// Stretch selects the preferred compression method. Default: phase vocoder.
	Stretch StretchMethod

	// TrimOverflow cuts a clip that is still too long after capped
	// compression down to the target length.
	TrimOverflow bool
}

// DefaultOptions returns a 50 ms tolerance, a 1.5× speed cap and phase
// vocoder stretching.
func DefaultOptions() Options {
	return Options{ToleranceMs: 50, MaxSpeedFactor: 1.5, Stretch: StretchPhaseVocoder}
}

// Validate reports every problem with o.
func (o Options) Validate() error {
	var errs []error
	if o.ToleranceMs < 0 {
		errs = append(errs, fmt.Errorf("tolerance must be ≥ 0 ms, got %d", o.ToleranceMs))
	}
	if math.IsNaN(o.MaxSpeedFactor) || o.MaxSpeedFactor < 1 {
		errs = append(errs, fmt.Errorf("max speed factor must be ≥ 1, got %v", o.MaxSpeedFactor))
	}
	if _, ok := fallbackChain[o.Stretch]; !ok {
		errs = append(errs, fmt.Errorf("unknown stretch method %q", o.Stretch))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
}

// Action describes what Reconcile did to a clip.
type Action string

const (
	ActionUnchanged Action = "unchanged"
	ActionPad       Action = "pad"
	ActionStretch   Action = "stretch"
)

// Adjustment reports a reconciliation decision.
type Adjustment struct {
	Action Action

	// PadBefore and PadAfter are the inserted silence, in frames.
	PadBefore, PadAfter int

	// Factor is the applied speed factor, Method the algorithm that produced
	// the result, and Capped reports that the wanted factor exceeded the cap.
	Factor float64
	Method StretchMethod
	Capped bool

	// Trimmed is the number of frames cut by TrimOverflow.
	Trimmed int
}

// Reconcile fits clip to targetMs milliseconds:
//
//   - within ToleranceMs of the target, clip is returned unchanged;
//   - shorter, it is padded with silence, 20% of the gap before and 80% after,
//     to exactly the target length;
//   - longer, it is compressed by actual/target, capped at MaxSpeedFactor.
//
// targetMs ≤ 0 fails with ErrInvalidTarget.
func Reconcile(clip audio.Buffer, targetMs int, opts Options) (audio.Buffer, error) {
	out, _, err := reconcile(clip, targetMs, opts)
	return out, err
}

func reconcile(clip audio.Buffer, targetMs int, opts Options) (audio.Buffer, Adjustment, error) {
	if targetMs <= 0 {
		return audio.Buffer{}, Adjustment{}, fmt.Errorf("%w: target duration %d ms", ErrInvalidTarget, targetMs)
	}
	if err := opts.Validate(); err != nil {
		return audio.Buffer{}, Adjustment{}, err
	}
	if err := clip.Validate(); err != nil {
		return audio.Buffer{}, Adjustment{}, fmt.Errorf("resynth: reconcile: %w", err)
	}

	rate := clip.SampleRate
	frames := clip.Frames()
	targetFrames := audio.MsToFrames(targetMs, rate)
	actualMs := float64(frames) * 1000 / float64(rate)

	if math.Abs(actualMs-float64(targetMs)) <= float64(opts.ToleranceMs) {
		return clip, Adjustment{Action: ActionUnchanged}, nil
	}

	if frames < targetFrames {
		gap := targetFrames - frames
		before := gap * 2 / 10
		adj := Adjustment{Action: ActionPad, PadBefore: before, PadAfter: gap - before}
		return audio.Pad(clip, adj.PadBefore, adj.PadAfter), adj, nil
	}

	factor := actualMs / float64(targetMs)
	adj := Adjustment{Action: ActionStretch, Factor: factor}
	if factor > opts.MaxSpeedFactor {
		adj.Factor = opts.MaxSpeedFactor
		adj.Capped = true
	}
	out, method, err := stretch(clip, adj.Factor, opts.Stretch)
	if err != nil {
		return audio.Buffer{}, Adjustment{}, fmt.Errorf("resynth: reconcile: %w", err)
	}
	adj.Method = method
	if opts.TrimOverflow && out.Frames() > targetFrames {
		adj.Trimmed = out.Frames() - targetFrames
		out = out.Slice(0, targetFrames)
	}
	return out, adj, nil
}

// stretch applies the first method in the fallback chain that accepts the
// clip.
func stretch(clip audio.Buffer, factor float64, preferred StretchMethod) (audio.Buffer, StretchMethod, error) {
	var lastErr error
	for _, m := range fallbackChain[preferred] {
		var (
			out audio.Buffer
			err error
		)
		switch m {
		case StretchPhaseVocoder:
			out, err = dsp.PhaseVocoder(clip, factor)
		case StretchOLA:
			out, err = dsp.OLA(clip, factor)
		default:
			out, err = dsp.ResampleStretch(clip, factor)
		}
		if err == nil {
			return out, m, nil
		}
		if !errors.Is(err, dsp.ErrClipTooShort) {
			return audio.Buffer{}, m, err
		}
		lastErr = err
	}
	return audio.Buffer{}, "", lastErr
}
