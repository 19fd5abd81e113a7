// Package webrtc provides a vad.Engine backed by the WebRTC voice activity
// detector. It accepts 16-bit mono PCM at 8, 16, 32 or 48 kHz in 10, 20 or
// 30 ms frames.
//
// The detector is a C library; when cgo is disabled New returns
// ErrUnavailable and callers should fall back to another engine.
package webrtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
)

// ErrUnavailable is returned when the binary was built without cgo.
var ErrUnavailable = errors.New("webrtc vad: unavailable (cgo disabled)")

var validRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}

// Engine creates WebRTC VAD sessions. It is stateless and safe for concurrent
// use; every session owns its own detector instance.
type Engine struct{}

// New returns a WebRTC engine, or ErrUnavailable when the detector is not
// compiled in.
func New() (*Engine, error) {
	if !available {
		return nil, ErrUnavailable
	}
	return &Engine{}, nil
}

var _ vad.Engine = (*Engine)(nil)

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !validRates[cfg.SampleRate] {
		return nil, fmt.Errorf("webrtc vad: unsupported sample rate %d", cfg.SampleRate)
	}
	d, err := newDetector(cfg.Aggressiveness)
	if err != nil {
		return nil, fmt.Errorf("webrtc vad: new session: %w", err)
	}
	return &Session{cfg: cfg, det: d}, nil
}

// Session classifies frames for one stream.
type Session struct {
	mu     sync.Mutex
	cfg    vad.Config
	det    detector
	closed bool
}

var _ vad.SessionHandle = (*Session)(nil)

// ProcessFrame implements vad.SessionHandle.
func (s *Session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.VADEvent{}, vad.ErrClosed
	}
	if want := s.cfg.FrameBytes(); len(frame) != want {
		return vad.VADEvent{}, fmt.Errorf("webrtc vad: frame is %d bytes, want %d", len(frame), want)
	}
	speech, err := s.det.process(s.cfg.SampleRate, frame)
	if err != nil {
		return vad.VADEvent{}, fmt.Errorf("webrtc vad: process: %w", err)
	}
	ev := vad.VADEvent{Speech: speech}
	if speech {
		ev.Probability = 1
	}
	return ev, nil
}

// Reset is a no-op; the WebRTC detector keeps only short-term adaptive state
// that re-converges within a few frames.
func (s *Session) Reset() {}

// Close implements vad.SessionHandle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// detector is the minimal surface of the C binding.
type detector interface {
	process(rate int, frame []byte) (bool, error)
}
