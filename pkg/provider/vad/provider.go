// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech classifier (e.g., WebRTC VAD or an
// energy detector) and surfaces it as a per-stream session. Sessions are
// independent so that several audio streams can be classified concurrently.
//
// Classification is synchronous: ProcessFrame returns immediately with a
// result for exactly one frame. Turning per-frame decisions into speech
// segments is the caller's job (see package clean).
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

import (
	"context"
	"errors"
	"fmt"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ErrClosed is returned by ProcessFrame after the session has been closed.
var ErrClosed = errors.New("vad: session closed")

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame. The cleaning pipeline always uses 16000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds: 10, 20
	// or 30. ProcessFrame returns an error if a frame does not match this size.
	FrameSizeMs int

	// Aggressiveness selects how eagerly frames are judged non-speech, from 0
	// (least aggressive, keeps the most audio) to 3 (most aggressive).
	Aggressiveness int
}

// Validate checks the configuration shared by all frame engines.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if !audio.ValidFrameMs(c.FrameSizeMs) {
		errs = append(errs, fmt.Errorf("frame size must be 10, 20 or 30 ms, got %d", c.FrameSizeMs))
	}
	if c.Aggressiveness < 0 || c.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("aggressiveness must be within [0, 3], got %d", c.Aggressiveness))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("vad: invalid config: %w", err)
	}
	return nil
}

// FrameBytes returns the expected size in bytes of one 16-bit mono frame.
func (c Config) FrameBytes() int {
	return audio.FrameSize(c.SampleRate, c.FrameSizeMs) * 2
}

// SessionHandle represents an active VAD session for a single audio stream. It is
// an interface so that test code can supply mock implementations without a live
// engine.
//
// A SessionHandle should not be shared between goroutines unless the implementation
// explicitly guarantees concurrent safety.
type SessionHandle interface {
	// ProcessFrame classifies a single audio frame. The frame must be raw
	// little-endian 16-bit mono PCM at the SampleRate and FrameSizeMs configured
	// when the session was created. Returns an error if the frame size is wrong
	// or if the engine encounters an internal failure.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset clears any accumulated state without closing the session.
	Reset()

	// Close releases all resources associated with the session. After Close,
	// ProcessFrame returns ErrClosed. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each frame-level VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may call
// NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	//
	// Returns an error if the configuration is invalid (e.g., unsupported sample
	// rate or frame size) or if the engine cannot allocate resources.
	NewSession(cfg Config) (SessionHandle, error)
}

// SegmentDetector is implemented by backends that analyse a whole buffer at
// once and report speech spans directly (e.g., neural detectors with their own
// smoothing). The buffer must be 16 kHz mono.
type SegmentDetector interface {
	DetectSegments(ctx context.Context, buf audio.Buffer) ([]types.Segment, error)
}
