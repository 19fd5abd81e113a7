package audio

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// FormatConverter converts Buffers to a target format. It logs a warning the
// first time it sees a mismatched source format. Create one per job; not
// designed for shared use across goroutines.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
}

// Convert converts buf to the target format. If the source already matches,
// buf is returned unchanged. Conversion order: downmix first (so a stereo
// source is resampled once), then resample, then upmix.
func (c *FormatConverter) Convert(buf Buffer) Buffer {
	if buf.SampleRate == c.Target.SampleRate && buf.Channels == c.Target.Channels {
		return buf
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", formatString(buf.SampleRate, buf.Channels),
			"to", c.Target.String(),
		)
	})

	out := buf
	if out.Channels > 1 && c.Target.Channels == 1 {
		out = Downmix(out)
	}
	if out.SampleRate != c.Target.SampleRate {
		out = Resample(out, c.Target.SampleRate)
	}
	if out.Channels == 1 && c.Target.Channels > 1 {
		out = Upmix(out, c.Target.Channels)
	}
	return out
}

// Normalize converts buf to f. It is shorthand for a one-shot FormatConverter
// without the mismatch warning.
func Normalize(buf Buffer, f Format) Buffer {
	if buf.Format() == f {
		return buf
	}
	out := buf
	if out.Channels > 1 && f.Channels == 1 {
		out = Downmix(out)
	}
	if out.SampleRate != f.SampleRate {
		out = Resample(out, f.SampleRate)
	}
	if out.Channels == 1 && f.Channels > 1 {
		out = Upmix(out, f.Channels)
	}
	return out
}

// Upmix duplicates each mono sample into n interleaved channels. Buffers that
// are not mono are returned unchanged.
func Upmix(buf Buffer, n int) Buffer {
	if buf.Channels != 1 || n <= 1 {
		return buf
	}
	out := make([]int16, len(buf.Samples)*n)
	for i, s := range buf.Samples {
		for c := range n {
			out[i*n+c] = s
		}
	}
	return Buffer{Samples: out, SampleRate: buf.SampleRate, Channels: n}
}

// Downmix averages all channels of each frame into a mono buffer. Uses int32
// arithmetic to prevent overflow.
func Downmix(buf Buffer) Buffer {
	if buf.Channels <= 1 {
		return buf
	}
	ch := buf.Channels
	frames := buf.Frames()
	out := make([]int16, frames)
	for i := range frames {
		var sum int32
		for c := range ch {
			sum += int32(buf.Samples[i*ch+c])
		}
		out[i] = clip16(sum / int32(ch))
	}
	return Buffer{Samples: out, SampleRate: buf.SampleRate, Channels: 1}
}

// Resample converts buf to dstRate using linear interpolation per channel.
// If the rates already match, or either rate is non-positive, buf is returned
// unchanged.
func Resample(buf Buffer, dstRate int) Buffer {
	srcRate := buf.SampleRate
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return buf
	}
	ch := buf.Channels
	srcFrames := buf.Frames()
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	out := make([]int16, dstFrames*ch)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)
		next := srcIdx + 1
		if next >= srcFrames {
			next = srcIdx
		}
		for c := range ch {
			s0 := float64(buf.Samples[srcIdx*ch+c])
			s1 := float64(buf.Samples[next*ch+c])
			out[i*ch+c] = int16(s0*(1-frac) + s1*frac)
		}
	}
	return Buffer{Samples: out, SampleRate: dstRate, Channels: ch}
}

// Channel extracts channel c as float64 samples scaled to [-1, 1).
func (b Buffer) Channel(c int) []float64 {
	n := b.Frames()
	out := make([]float64, n)
	for i := range n {
		out[i] = float64(b.Samples[i*b.Channels+c]) / 32768
	}
	return out
}

// FromChannels interleaves float64 channels scaled to [-1, 1) into a Buffer,
// rounding and saturating each sample. All channels must have equal length.
func FromChannels(channels [][]float64, sampleRate int) Buffer {
	ch := len(channels)
	if ch == 0 {
		return Buffer{SampleRate: sampleRate, Channels: 1}
	}
	n := len(channels[0])
	out := make([]int16, n*ch)
	for c, data := range channels {
		for i := range n {
			v := math.Round(data[i] * 32768)
			if math.IsNaN(v) {
				v = 0
			}
			out[i*ch+c] = clip16(int32(math.Max(math.Min(v, math.MaxInt16), math.MinInt16)))
		}
	}
	return Buffer{Samples: out, SampleRate: sampleRate, Channels: ch}
}

// formatString returns a human-readable string for a sample rate and channel
// count, e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
