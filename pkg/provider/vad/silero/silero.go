// Package silero provides a vad.SegmentDetector backed by the Silero neural
// VAD model running on ONNX Runtime. Unlike frame engines it analyses a whole
// 16 kHz mono buffer and applies its own smoothing, so its output bypasses
// the hysteresis detector.
//
// The model runtime is a C library; without cgo New returns ErrUnavailable.
package silero

import (
	"errors"
	"fmt"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ErrUnavailable is returned when the binary was built without cgo.
var ErrUnavailable = errors.New("silero vad: unavailable (cgo disabled)")

// Config configures the detector.
type Config struct {
	// ModelPath is the path to silero_vad.onnx. Required.
	ModelPath string

	// Threshold is the speech probability threshold. Default: 0.5.
	Threshold float64

	// MinSilenceMs is the silence needed to close a segment. Default: 100.
	MinSilenceMs int

	// SpeechPadMs pads each side of every segment. Default: 30.
	SpeechPadMs int
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = 0.5
	}
	if c.MinSilenceMs <= 0 {
		c.MinSilenceMs = 100
	}
	if c.SpeechPadMs < 0 {
		c.SpeechPadMs = 0
	} else if c.SpeechPadMs == 0 {
		c.SpeechPadMs = 30
	}
	return c
}

// toSegments converts raw detector spans to validated segments. An end of 0
// means speech runs to the end of the buffer.
func toSegments(raw [][2]float64, buf audio.Buffer) []types.Segment {
	total := buf.Seconds()
	out := make([]types.Segment, 0, len(raw))
	for _, r := range raw {
		start, end := max(r[0], 0), r[1]
		if end <= 0 || end > total {
			end = total
		}
		if end > start {
			out = append(out, types.Segment{Start: start, End: end})
		}
	}
	return out
}

func checkInput(buf audio.Buffer) error {
	if buf.Format() != audio.VADFormat {
		return fmt.Errorf("silero vad: %w: need %s, got %s", audio.ErrUnsupportedFormat, audio.VADFormat, buf.Format())
	}
	return nil
}
