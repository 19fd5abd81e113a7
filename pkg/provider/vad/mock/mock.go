// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that sessions are created with the expected Config.
// Use Session to script per-frame results and inspect the frames that were
// submitted for processing.
//
// Example:
//
//	sess := &mock.Session{Script: []bool{false, true, true, true}}
//	eng := &mock.Engine{Session: sess}
//	handle, _ := eng.NewSession(cfg)
package mock

import (
	"context"
	"sync"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// NewSessionCall records a single invocation of Engine.NewSession.
type NewSessionCall struct {
	// Cfg is the Config passed to NewSession.
	Cfg vad.Config
}

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by NewSession. If nil, NewSession
	// returns a new default Session.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records every call to NewSession in order.
	NewSessionCalls []NewSessionCall
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, NewSessionCall{Cfg: cfg})
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// Session is a mock implementation of vad.SessionHandle.
type Session struct {
	mu sync.Mutex

	// Script gives the Speech result for the n-th ProcessFrame call. Calls past
	// the end of Script return EventResult.
	Script []bool

	// EventResult is returned once Script is exhausted.
	EventResult vad.VADEvent

	// ErrAt maps a call index to an error returned for that call only.
	ErrAt map[int]error

	// ProcessFrameErr, if non-nil, is returned by every ProcessFrame call.
	ProcessFrameErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// Frames records a copy of every frame passed to ProcessFrame.
	Frames [][]byte

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// ProcessFrame records the call and returns the scripted result.
func (s *Session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.Frames)
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.Frames = append(s.Frames, cp)

	if s.ProcessFrameErr != nil {
		return vad.VADEvent{}, s.ProcessFrameErr
	}
	if err, ok := s.ErrAt[i]; ok {
		return vad.VADEvent{}, err
	}
	if i < len(s.Script) {
		ev := vad.VADEvent{Speech: s.Script[i]}
		if ev.Speech {
			ev.Probability = 1
		}
		return ev, nil
	}
	return s.EventResult, nil
}

// Reset records the call by incrementing ResetCallCount.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// CallCount returns the number of ProcessFrame calls so far.
func (s *Session) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Frames)
}

// Ensure Session implements vad.SessionHandle at compile time.
var _ vad.SessionHandle = (*Session)(nil)

// SegmentDetector is a mock implementation of vad.SegmentDetector.
type SegmentDetector struct {
	mu sync.Mutex

	// Segments is returned by every DetectSegments call.
	Segments []types.Segment

	// Err, if non-nil, is returned instead of Segments.
	Err error

	// Calls records the buffers passed to DetectSegments.
	Calls []audio.Buffer
}

// DetectSegments records the call and returns Segments, Err.
func (d *SegmentDetector) DetectSegments(_ context.Context, buf audio.Buffer) ([]types.Segment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, buf)
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Segments, nil
}

var _ vad.SegmentDetector = (*SegmentDetector)(nil)
