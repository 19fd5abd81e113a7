//go:build cgo

package webrtc

import webrtcvad "github.com/maxhawkins/go-webrtcvad"

const available = true

type cgoDetector struct {
	v *webrtcvad.VAD
}

func newDetector(mode int) (detector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	// WebRTC VAD modes: 0 (quality) .. 3 (aggressive).
	if err := v.SetMode(mode); err != nil {
		return nil, err
	}
	return &cgoDetector{v: v}, nil
}

func (d *cgoDetector) process(rate int, frame []byte) (bool, error) {
	return d.v.Process(rate, frame)
}
