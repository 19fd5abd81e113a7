//go:build !cgo

package webrtc

const available = false

func newDetector(int) (detector, error) {
	return nil, ErrUnavailable
}
