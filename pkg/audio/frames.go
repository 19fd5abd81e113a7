package audio

import "fmt"

// Frame is a fixed-duration window of mono samples. Samples is a view into
// the buffer the frame was cut from.
type Frame struct {
	// Index is the zero-based position of the frame in its stream.
	Index int

	Samples []int16
}

// Start returns the frame's offset in seconds for the given frame duration.
func (f Frame) Start(frameMs int) float64 {
	return float64(f.Index*frameMs) / 1000
}

// Bytes encodes the frame as little-endian 16-bit PCM, the layout expected by
// frame classifiers.
func (f Frame) Bytes() []byte {
	return samplesToBytes(f.Samples)
}

// ValidFrameMs reports whether ms is a frame duration accepted by ToFrames.
func ValidFrameMs(ms int) bool {
	return ms == 10 || ms == 20 || ms == 30
}

// FrameSize returns the number of samples in one frame of frameMs at rate.
func FrameSize(rate, frameMs int) int {
	return rate * frameMs / 1000
}

// ToFrames cuts a 16 kHz mono buffer into consecutive non-overlapping frames
// of frameMs milliseconds. A trailing partial frame is dropped. A buffer
// shorter than one frame yields an empty slice and no error.
//
// Frames share the buffer's backing array. The result is deterministic:
// calling ToFrames twice on the same input yields identical frames.
func ToFrames(buf Buffer, frameMs int) ([]Frame, error) {
	if !ValidFrameMs(frameMs) {
		return nil, fmt.Errorf("%w: frame duration %dms (want 10, 20 or 30)", ErrUnsupportedFormat, frameMs)
	}
	if buf.Format() != VADFormat {
		return nil, fmt.Errorf("%w: framing requires %s, got %s", ErrUnsupportedFormat, VADFormat, buf.Format())
	}

	size := FrameSize(buf.SampleRate, frameMs)
	n := len(buf.Samples)
	if n < size {
		return []Frame{}, nil
	}

	count := (n-size)/size + 1
	frames := make([]Frame, count)
	for i := range count {
		frames[i] = Frame{Index: i, Samples: buf.Samples[i*size : (i+1)*size : (i+1)*size]}
	}
	return frames, nil
}
