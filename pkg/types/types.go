// Package types defines the shared value types used across videopro packages.
//
// These types are the common currency between the audio editor, the cleaning
// engine, the resynthesizer, and the transcription and TTS providers. Each
// package defines its own domain types; only cross-cutting data lives here to
// avoid circular imports.
//
// All timestamps are expressed in seconds relative to the start of the audio
// buffer they were derived from.
package types

import (
	"fmt"
	"math"
)

// Segment is a half-open time span [Start, End) in seconds. A valid segment
// has 0 ≤ Start < End.
type Segment struct {
	Start float64
	End   float64
}

// Duration returns End − Start in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Validate reports whether the segment has non-negative, finite bounds and
// End > Start.
func (s Segment) Validate() error {
	if math.IsNaN(s.Start) || math.IsNaN(s.End) || math.IsInf(s.Start, 0) || math.IsInf(s.End, 0) {
		return fmt.Errorf("segment [%v, %v): non-finite bound", s.Start, s.End)
	}
	if s.Start < 0 {
		return fmt.Errorf("segment [%v, %v): negative start", s.Start, s.End)
	}
	if s.End <= s.Start {
		return fmt.Errorf("segment [%v, %v): end must be after start", s.Start, s.End)
	}
	return nil
}

// String renders the segment as "[1.230s, 4.560s)".
func (s Segment) String() string {
	return fmt.Sprintf("[%.3fs, %.3fs)", s.Start, s.End)
}

// SubtitleEntry is one timed line of a subtitle track. Entries in a track are
// ordered by Index and are expected (but not required) to be non-overlapping.
type SubtitleEntry struct {
	// Index is the 1-based position of the entry in its track.
	Index int

	// Start and End bound the entry in seconds.
	Start float64
	End   float64

	// Text is the subtitle content. May span multiple lines.
	Text string
}

// Segment returns the time span covered by the entry.
func (e SubtitleEntry) Segment() Segment {
	return Segment{Start: e.Start, End: e.End}
}

// StartMs returns the entry start rounded to the nearest millisecond.
func (e SubtitleEntry) StartMs() int {
	return int(math.Round(e.Start * 1000))
}

// EndMs returns the entry end rounded to the nearest millisecond.
func (e SubtitleEntry) EndMs() int {
	return int(math.Round(e.End * 1000))
}

// Word is a single recognised word with its timing, as reported by
// transcription backends that support word-level timestamps.
type Word struct {
	Text  string
	Start float64
	End   float64

	// Confidence is the recognition confidence (0.0–1.0). Zero when the
	// backend does not report it.
	Confidence float64
}

// Transcript is the result of a batch transcription.
type Transcript struct {
	// Text is the full transcribed text.
	Text string

	// Language is the detected or requested language code, if known.
	Language string

	// Entries are the timed subtitle lines, ordered by start time.
	Entries []SubtitleEntry

	// Words holds word-level timing when requested and supported. May be nil.
	Words []Word
}

// VoiceProfile identifies a synthesis voice at a TTS provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is a human-readable label.
	Name string

	// Provider names the TTS backend this voice belongs to (e.g., "elevenlabs").
	Provider string

	// Metadata carries provider-specific attributes (accent, gender, ...).
	Metadata map[string]string
}
