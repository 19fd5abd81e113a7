// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription engine (a local whisper.cpp
// model or server, or a cloud API such as OpenAI, AssemblyAI or Deepgram) and
// turns one audio buffer into a timed transcript: subtitle-sized entries and,
// when the backend supports it, word-level timestamps.
//
// Providers are selected once at configuration time. Ordered fallback across
// providers lives in internal/resilience.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ErrNoSpeech is returned when a backend produced no transcript text.
var ErrNoSpeech = errors.New("stt: no speech recognised")

// Config carries per-request recognition settings.
type Config struct {
	// Language is an ISO-639-1 code ("en", "de"). Empty lets the backend
	// detect the language.
	Language string

	// WordTimestamps requests word-level timing, needed for filler removal.
	WordTimestamps bool

	// Prompt is an optional context hint (names, jargon) for backends that
	// accept one.
	Prompt string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises speech in buf. Entries and Words are ordered by
	// time and relative to the start of buf; entries are indexed from 1.
	//
	// Backends convert buf to the format they need. Returns an error if the
	// backend is unreachable, rejects the audio, or ctx is cancelled.
	Transcribe(ctx context.Context, buf audio.Buffer, cfg Config) (types.Transcript, error)
}
