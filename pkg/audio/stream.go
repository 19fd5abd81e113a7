package audio

import (
	"github.com/gopxl/beep"
)

// resampleQuality is the beep resampler quality (1–64). 4 is beep's
// recommended trade-off for offline conversion.
const resampleQuality = 4

// bufferStreamer exposes a mono or stereo Buffer as a beep.Streamer.
type bufferStreamer struct {
	buf Buffer
	pos int
}

func (s *bufferStreamer) Stream(samples [][2]float64) (int, bool) {
	n := s.buf.Frames()
	if s.pos >= n {
		return 0, false
	}
	ch := s.buf.Channels
	count := 0
	for count < len(samples) && s.pos < n {
		l := float64(s.buf.Samples[s.pos*ch]) / 32768
		r := l
		if ch > 1 {
			r = float64(s.buf.Samples[s.pos*ch+1]) / 32768
		}
		samples[count] = [2]float64{l, r}
		count++
		s.pos++
	}
	return count, true
}

func (s *bufferStreamer) Err() error { return nil }

// ResampleHQ converts a mono or stereo buffer to dstRate with beep's
// windowed-sinc resampler. Use it for clips that are mixed into a timeline;
// Resample is cheaper and adequate for analysis paths. Buffers with more than
// two channels fall back to Resample.
func ResampleHQ(buf Buffer, dstRate int) Buffer {
	if buf.SampleRate <= 0 || dstRate <= 0 || buf.SampleRate == dstRate || buf.IsEmpty() {
		return buf
	}
	if buf.Channels > 2 {
		return Resample(buf, dstRate)
	}

	rs := beep.Resample(resampleQuality, beep.SampleRate(buf.SampleRate), beep.SampleRate(dstRate), &bufferStreamer{buf: buf})
	want := int(int64(buf.Frames()) * int64(dstRate) / int64(buf.SampleRate))
	ch := buf.Channels
	out := Buffer{Samples: make([]int16, 0, want*ch), SampleRate: dstRate, Channels: ch}

	chunk := make([][2]float64, 512)
	for out.Frames() < want {
		n, ok := rs.Stream(chunk)
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
	if out.Frames() > want {
		out.Samples = out.Samples[:want*ch]
	}
	if missing := want - out.Frames(); missing > 0 {
		out.Samples = append(out.Samples, make([]int16, missing*ch)...)
	}
	return out
}
