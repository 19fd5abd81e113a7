// Package energy provides a pure-Go vad.Engine that classifies frames by their
// RMS energy. It has no native dependencies and serves as the fallback when
// the WebRTC detector is not compiled in.
//
// Each session tracks a slowly adapting noise floor; a frame is speech when
// its RMS exceeds both the aggressiveness threshold and the floor times
// FloorRatio.
package energy

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
)

// defaultThresholds maps aggressiveness 0–3 to the minimum normalised RMS
// (full scale = 1.0) for a speech frame.
var defaultThresholds = [4]float64{0.004, 0.008, 0.015, 0.025}

const (
	defaultFloorRatio = 3.0
	floorAlpha        = 0.05
)

// Option is a functional option for the energy Engine.
type Option func(*Engine)

// WithThresholds overrides the per-aggressiveness RMS thresholds.
func WithThresholds(t [4]float64) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithFloorRatio sets how far above the tracked noise floor a frame must be to
// count as speech. A ratio ≤ 0 disables floor tracking.
func WithFloorRatio(r float64) Option {
	return func(e *Engine) { e.floorRatio = r }
}

// Engine creates energy-based VAD sessions. Safe for concurrent use.
type Engine struct {
	thresholds [4]float64
	floorRatio float64
}

// New returns an energy Engine.
func New(opts ...Option) *Engine {
	e := &Engine{thresholds: defaultThresholds, floorRatio: defaultFloorRatio}
	for _, o := range opts {
		o(e)
	}
	return e
}

var _ vad.Engine = (*Engine)(nil)

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:        cfg,
		threshold:  e.thresholds[cfg.Aggressiveness],
		floorRatio: e.floorRatio,
	}, nil
}

// Session classifies frames for one stream.
type Session struct {
	mu         sync.Mutex
	cfg        vad.Config
	threshold  float64
	floorRatio float64
	floor      float64
	closed     bool
}

var _ vad.SessionHandle = (*Session)(nil)

// ProcessFrame implements vad.SessionHandle. Probability is the frame RMS
// relative to the effective threshold, capped at 1.
func (s *Session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.VADEvent{}, vad.ErrClosed
	}
	if want := s.cfg.FrameBytes(); len(frame) != want {
		return vad.VADEvent{}, fmt.Errorf("energy vad: frame is %d bytes, want %d", len(frame), want)
	}

	level := rms(frame)
	thresh := s.threshold
	if s.floorRatio > 0 && s.floor > 0 {
		thresh = max(thresh, s.floor*s.floorRatio)
	}
	speech := level >= thresh

	if !speech {
		if s.floor == 0 {
			s.floor = level
		} else {
			s.floor += floorAlpha * (level - s.floor)
		}
	}
	return vad.VADEvent{Speech: speech, Probability: min(level/(2*thresh), 1)}, nil
}

// Reset clears the tracked noise floor.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.floor = 0
}

// Close implements vad.SessionHandle.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// rms returns the normalised root-mean-square level of 16-bit LE PCM.
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
