package resynth

import (
	"errors"
	"fmt"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
)

// Placement positions one clip on the output timeline.
type Placement struct {
	Clip          audio.Buffer
	TargetStartMs int
	TargetEndMs   int
}

// Validate checks the placement bounds, and the clip format unless the clip
// is empty.
func (p Placement) Validate() error {
	if p.TargetStartMs < 0 {
		return fmt.Errorf("%w: negative start %d ms", ErrInvalidTarget, p.TargetStartMs)
	}
	if p.TargetEndMs <= p.TargetStartMs {
		return fmt.Errorf("%w: end %d ms not after start %d ms", ErrInvalidTarget, p.TargetEndMs, p.TargetStartMs)
	}
	if p.Clip.IsEmpty() {
		return nil
	}
	return p.Clip.Validate()
}

// DurationMs returns the length of the placement's window.
func (p Placement) DurationMs() int {
	return p.TargetEndMs - p.TargetStartMs
}

// Assemble builds a silent mono timeline of max(TargetEndMs) at sampleRate
// and mixes every clip into it at its TargetStartMs. Overlapping clips are
// summed with saturation; audio past the end of the timeline is dropped.
// Placements with an empty clip are skipped, leaving silence.
//
// Clips in another format are converted first. Assemble does not reconcile
// clip lengths; use Reconcile or a Resynthesizer for that.
func Assemble(placements []Placement, sampleRate int) (audio.Buffer, error) {
	out, _, err := assemble(placements, sampleRate)
	return out, err
}

// assemble also returns the number of frames truncated per placement.
func assemble(placements []Placement, sampleRate int) (audio.Buffer, []int, error) {
	if sampleRate <= 0 {
		return audio.Buffer{}, nil, fmt.Errorf("resynth: assemble: %w: sample rate %d", audio.ErrUnsupportedFormat, sampleRate)
	}
	var (
		errs  []error
		endMs int
	)
	for i, p := range placements {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("placement %d: %w", i, err))
			continue
		}
		endMs = max(endMs, p.TargetEndMs)
	}
	if len(errs) > 0 {
		return audio.Buffer{}, nil, fmt.Errorf("resynth: assemble: %w", errors.Join(errs...))
	}

	f := audio.Format{SampleRate: sampleRate, Channels: 1}
	out := audio.Silence(f, audio.MsToFrames(endMs, sampleRate))
	truncated := make([]int, len(placements))
	for i, p := range placements {
		if p.Clip.IsEmpty() {
			continue
		}
		clip := audio.Normalize(p.Clip, f)
		n, err := audio.MixAt(out, clip, audio.MsToFrames(p.TargetStartMs, sampleRate))
		if err != nil {
			return audio.Buffer{}, nil, fmt.Errorf("resynth: assemble: placement %d: %w", i, err)
		}
		truncated[i] = n
	}
	return out, truncated, nil
}
