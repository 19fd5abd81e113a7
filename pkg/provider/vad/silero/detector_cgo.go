//go:build cgo

package silero

import (
	"context"
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// Detector runs Silero VAD. Calls are serialised; the underlying session is
// not safe for concurrent use.
type Detector struct {
	mu sync.Mutex
	sd *speech.Detector
}

var _ vad.SegmentDetector = (*Detector)(nil)

// New loads the model and returns a ready Detector. Call Close when done.
func New(cfg Config) (*Detector, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("silero vad: model path is required")
	}
	cfg = cfg.withDefaults()
	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           audio.VADFormat.SampleRate,
		Threshold:            float32(cfg.Threshold),
		MinSilenceDurationMs: cfg.MinSilenceMs,
		SpeechPadMs:          cfg.SpeechPadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("silero vad: load model: %w", err)
	}
	return &Detector{sd: sd}, nil
}

// DetectSegments implements vad.SegmentDetector.
func (d *Detector) DetectSegments(ctx context.Context, buf audio.Buffer) ([]types.Segment, error) {
	if err := checkInput(buf); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pcm := make([]float32, len(buf.Samples))
	for i, s := range buf.Samples {
		pcm[i] = float32(s) / 32768
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.sd.Reset(); err != nil {
		return nil, fmt.Errorf("silero vad: reset: %w", err)
	}
	segs, err := d.sd.Detect(pcm)
	if err != nil {
		return nil, fmt.Errorf("silero vad: detect: %w", err)
	}
	raw := make([][2]float64, len(segs))
	for i, s := range segs {
		raw[i] = [2]float64{s.SpeechStartAt, s.SpeechEndAt}
	}
	return toSegments(raw, buf), nil
}

// Close releases the model session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sd == nil {
		return nil
	}
	err := d.sd.Destroy()
	d.sd = nil
	return err
}
