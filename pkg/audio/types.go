// Package audio provides the in-memory PCM buffer used throughout videopro,
// together with format conversion, fixed-duration framing, segment-based
// editing, and WAV/MP3 codecs.
//
// A Buffer is treated as an immutable value: every operation returns a new
// Buffer and never writes to its input. Operations that only select a region
// (Slice, ToFrames) return views sharing the input's backing array; callers
// that need to mutate the result must Clone it first.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyBuffer is returned when an operation requires audio but the
	// buffer holds no samples.
	ErrEmptyBuffer = errors.New("audio: empty buffer")

	// ErrUnsupportedFormat is returned when a buffer's sample rate, channel
	// count, or frame duration is not accepted by an operation.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")

	// ErrInvalidSegment is returned when a segment has a negative bound or
	// does not end after it starts.
	ErrInvalidSegment = errors.New("audio: invalid segment")
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// VADFormat is the format required by frame-level voice activity detection.
var VADFormat = Format{SampleRate: 16000, Channels: 1}

// String returns e.g. "48000Hz stereo".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// Buffer is a block of signed 16-bit PCM audio. Samples are interleaved when
// Channels > 1, so len(Samples) is always a multiple of Channels.
type Buffer struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// NewBuffer returns a Buffer over samples. The slice is not copied.
func NewBuffer(samples []int16, sampleRate, channels int) Buffer {
	return Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

// Silence returns a zero-filled buffer holding frames samples per channel.
func Silence(f Format, frames int) Buffer {
	if frames < 0 {
		frames = 0
	}
	return Buffer{
		Samples:    make([]int16, frames*f.Channels),
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
	}
}

// SilenceMs returns a zero-filled buffer lasting ms milliseconds.
func SilenceMs(f Format, ms int) Buffer {
	return Silence(f, MsToFrames(ms, f.SampleRate))
}

// Format returns the buffer's sample rate and channel count.
func (b Buffer) Format() Format {
	return Format{SampleRate: b.SampleRate, Channels: b.Channels}
}

// Frames returns the number of samples per channel.
func (b Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// IsEmpty reports whether the buffer holds no samples.
func (b Buffer) IsEmpty() bool {
	return len(b.Samples) == 0
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Seconds returns the playback length in seconds.
func (b Buffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// DurationMs returns the playback length rounded to the nearest millisecond.
func (b Buffer) DurationMs() int {
	return int(math.Round(b.Seconds() * 1000))
}

// Validate checks that the buffer describes well-formed PCM.
func (b Buffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, b.SampleRate)
	}
	if b.Channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, b.Channels)
	}
	if len(b.Samples)%b.Channels != 0 {
		return fmt.Errorf("%w: %d samples not divisible by %d channels", ErrUnsupportedFormat, len(b.Samples), b.Channels)
	}
	return nil
}

// Slice returns the view of frames [from, to). Bounds are clamped to
// [0, Frames()] and to ≥ from.
func (b Buffer) Slice(from, to int) Buffer {
	n := b.Frames()
	from = clamp(from, 0, n)
	to = clamp(to, from, n)
	return Buffer{
		Samples:    b.Samples[from*b.Channels : to*b.Channels],
		SampleRate: b.SampleRate,
		Channels:   b.Channels,
	}
}

// Clone returns a deep copy of the buffer.
func (b Buffer) Clone() Buffer {
	out := b
	out.Samples = make([]int16, len(b.Samples))
	copy(out.Samples, b.Samples)
	return out
}

// FrameAt converts a time in seconds to a per-channel frame offset using
// floor(t × SampleRate), clamped to [0, Frames()].
func (b Buffer) FrameAt(seconds float64) int {
	return clamp(int(math.Floor(seconds*float64(b.SampleRate))), 0, b.Frames())
}

// Bytes encodes the samples as little-endian 16-bit PCM.
func (b Buffer) Bytes() []byte {
	return samplesToBytes(b.Samples)
}

// FromBytes decodes little-endian 16-bit PCM into a Buffer. A trailing odd
// byte is rejected.
func FromBytes(pcm []byte, sampleRate, channels int) (Buffer, error) {
	if len(pcm)%2 != 0 {
		return Buffer{}, fmt.Errorf("%w: odd byte count %d in 16-bit PCM", ErrUnsupportedFormat, len(pcm))
	}
	b := Buffer{Samples: bytesToSamples(pcm), SampleRate: sampleRate, Channels: channels}
	if err := b.Validate(); err != nil {
		return Buffer{}, err
	}
	return b, nil
}

// MsToFrames converts a millisecond duration to a frame count at rate.
func MsToFrames(ms, rate int) int {
	return int(int64(ms) * int64(rate) / 1000)
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func bytesToSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clip16 saturates v to the int16 range.
func clip16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
