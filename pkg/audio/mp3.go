package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gopxl/beep/mp3"
)

const mp3ChunkFrames = 1024

// DecodeMP3 decodes an MP3 stream into a 16-bit Buffer at the stream's native
// sample rate and channel count.
func DecodeMP3(r io.Reader) (Buffer, error) {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: decode mp3: %w", err)
	}
	defer streamer.Close()

	ch := format.NumChannels
	if ch < 1 || ch > 2 {
		ch = 2
	}
	out := Buffer{SampleRate: int(format.SampleRate), Channels: ch}
	if n := streamer.Len(); n > 0 {
		out.Samples = make([]int16, 0, n*ch)
	}

	chunk := make([][2]float64, mp3ChunkFrames)
	for {
		n, ok := streamer.Stream(chunk)
		for _, s := range chunk[:n] {
			out.Samples = append(out.Samples, floatTo16(s[0]))
			if ch == 2 {
				out.Samples = append(out.Samples, floatTo16(s[1]))
			}
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return Buffer{}, fmt.Errorf("audio: decode mp3: %w", err)
	}
	if out.IsEmpty() {
		return Buffer{}, fmt.Errorf("audio: decode mp3: %w", ErrEmptyBuffer)
	}
	return out, nil
}

// DecodeMP3Bytes decodes an in-memory MP3 file.
func DecodeMP3Bytes(data []byte) (Buffer, error) {
	return DecodeMP3(bytes.NewReader(data))
}

func floatTo16(v float64) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	}
	return int16(v * 32767)
}
