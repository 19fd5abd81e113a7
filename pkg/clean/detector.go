// Package clean implements the audio cleaning engine: noise reduction,
// frame-level voice activity classification, hysteresis segment detection,
// and removal of non-speech audio.
package clean

import (
	"errors"
	"fmt"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// DetectorConfig configures the speech segment detector. All counts are in
// frames of FrameMs milliseconds.
type DetectorConfig struct {
	FrameMs int

	// MinSpeechFrames consecutive speech frames open a segment.
	MinSpeechFrames int

	// MinSilenceFrames consecutive silence frames close a segment.
	MinSilenceFrames int

	// PaddingFrames extends each segment at both ends.
	PaddingFrames int
}

// DefaultDetectorConfig returns 30 ms frames, 3 frames to open, 5 to close
// and 2 frames of padding.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{FrameMs: 30, MinSpeechFrames: 3, MinSilenceFrames: 5, PaddingFrames: 2}
}

// Validate checks that the configuration is usable.
func (c DetectorConfig) Validate() error {
	var errs []error
	if !audio.ValidFrameMs(c.FrameMs) {
		errs = append(errs, fmt.Errorf("frame duration must be 10, 20 or 30 ms, got %d", c.FrameMs))
	}
	if c.MinSpeechFrames < 1 {
		errs = append(errs, fmt.Errorf("min speech frames must be ≥ 1, got %d", c.MinSpeechFrames))
	}
	if c.MinSilenceFrames < 1 {
		errs = append(errs, fmt.Errorf("min silence frames must be ≥ 1, got %d", c.MinSilenceFrames))
	}
	if c.PaddingFrames < 0 {
		errs = append(errs, fmt.Errorf("padding frames must be ≥ 0, got %d", c.PaddingFrames))
	}
	return errors.Join(errs...)
}

type detectorState int

const (
	stateSilence detectorState = iota
	stateSpeech
)

// Detect turns per-frame speech flags into speech segments using a
// two-state hysteresis machine.
//
// In SILENCE, a run of MinSpeechFrames consecutive speech frames ending at
// frame i opens a segment starting at frame max(0, i−MinSpeechFrames+1−PaddingFrames).
// In SPEECH, a run of MinSilenceFrames consecutive silence frames ending at
// frame i closes it at frame i−MinSilenceFrames+PaddingFrames. A segment still
// open when flags run out ends at frame len(flags)+PaddingFrames. A run is
// broken by any frame of the opposite kind. Frame indices convert to seconds
// as index×FrameMs/1000, and a segment is emitted only if it ends after it
// starts.
//
// End times are not clamped to the audio length; the editor clamps them.
func Detect(flags []bool, cfg DetectorConfig) []types.Segment {
	var (
		segs         []types.Segment
		state        = stateSilence
		speechRun    int
		silenceRun   int
		startFrame   int
		frameSeconds = float64(cfg.FrameMs) / 1000
	)

	emit := func(endFrame int) {
		start := float64(startFrame) * frameSeconds
		end := float64(endFrame) * frameSeconds
		if end > start {
			segs = append(segs, types.Segment{Start: start, End: end})
		}
	}

	for i, speech := range flags {
		switch state {
		case stateSilence:
			if !speech {
				speechRun = 0
				continue
			}
			speechRun++
			if speechRun >= cfg.MinSpeechFrames {
				state = stateSpeech
				startFrame = max(0, i-cfg.MinSpeechFrames+1-cfg.PaddingFrames)
				silenceRun = 0
			}
		case stateSpeech:
			if speech {
				silenceRun = 0
				continue
			}
			silenceRun++
			if silenceRun >= cfg.MinSilenceFrames {
				emit(i - cfg.MinSilenceFrames + cfg.PaddingFrames)
				state = stateSilence
				speechRun = 0
			}
		}
	}
	if state == stateSpeech {
		emit(len(flags) + cfg.PaddingFrames)
	}
	return segs
}
