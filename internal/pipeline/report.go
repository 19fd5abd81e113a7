package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio/dsp"
	"github.com/anujsonawane60/my-video-pro-app/pkg/clean"
	"github.com/anujsonawane60/my-video-pro-app/pkg/resynth"
)

// Stage names used in reports, errors, spans and metrics.
const (
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StageFillers    = "fillers"
	StageClean      = "clean"
	StageVoice      = "voice"
	StageResynth    = "resynth"
	StageMux        = "mux"
)

// Warning kinds.
const (
	WarnNoiseReduction   = "noise_reduction_unavailable"
	WarnFrameErrors      = "vad_frame_errors"
	WarnSegmentDetector  = "segment_detector_failed"
	WarnTranscription    = "transcription_failed"
	WarnNoWordTiming     = "no_word_timing"
	WarnNoSubtitles      = "no_subtitles"
	WarnEntrySkipped     = "tts_entry_skipped"
	WarnVoiceConversion  = "voice_conversion_failed"
	WarnVoiceUnsupported = "voice_conversion_unsupported"
	WarnOther            = "other"
)

// Warning is a soft failure: processing continued with degraded output.
type Warning struct {
	Stage string
	Kind  string
	Err   error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Stage, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// StageError is a hard failure, naming the stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageTiming is the wall time spent in one stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Report summarises one job.
type Report struct {
	JobID string

	// InputSeconds and OutputSeconds are the audio lengths before and after
	// the job.
	InputSeconds  float64
	OutputSeconds float64

	// SegmentsKept is the number of merged speech segments.
	SegmentsKept int

	// SpeechSeconds is the total length of the speech segments.
	SpeechSeconds float64

	// SecondsRemoved is the audio cut out or muted as non-speech or filler.
	SecondsRemoved float64

	// FillersRemoved counts filler words cut or muted.
	FillersRemoved int

	// Entries is the number of subtitle entries produced or consumed.
	Entries int

	// Adjustments tallies resynthesis reconciliation actions.
	Adjustments map[resynth.Action]int

	// Skipped lists subtitle entries left silent by resynthesis.
	Skipped []resynth.Skipped

	Warnings []Warning
	Stages   []StageTiming
}

// warningKind maps soft errors from the engine packages to a warning kind.
func warningKind(err error) string {
	switch {
	case errors.Is(err, dsp.ErrNoiseReductionUnavailable):
		return WarnNoiseReduction
	case errors.Is(err, clean.ErrFramesUnclassified):
		return WarnFrameErrors
	case errors.Is(err, clean.ErrSegmentDetectorFailed):
		return WarnSegmentDetector
	default:
		return WarnOther
	}
}
