package whisper

import "github.com/anujsonawane60/my-video-pro-app/pkg/audio"

// toFloat32 converts buf to the 16 kHz mono float32 samples whisper.cpp
// expects, normalised to [-1.0, 1.0).
func toFloat32(buf audio.Buffer) []float32 {
	mono := audio.Normalize(buf, audio.VADFormat)
	out := make([]float32, len(mono.Samples))
	for i, s := range mono.Samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
