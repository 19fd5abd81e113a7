//go:build !cgo

package silero

import (
	"context"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// Detector is unavailable without cgo.
type Detector struct{}

// New always returns ErrUnavailable.
func New(Config) (*Detector, error) {
	return nil, ErrUnavailable
}

// DetectSegments always returns ErrUnavailable.
func (d *Detector) DetectSegments(context.Context, audio.Buffer) ([]types.Segment, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (d *Detector) Close() error { return nil }
