package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
)

// ErrClipTooShort is returned by the spectral stretchers when the input is
// shorter than one analysis window.
var ErrClipTooShort = errors.New("dsp: clip too short for stretching")

// StretchedLength returns the output length for n samples played factor
// times faster: round(n / factor).
func StretchedLength(n int, factor float64) int {
	return int(math.Round(float64(n) / factor))
}

// PhaseVocoder time-stretches buf by factor (> 1 shortens) without changing
// pitch. Each channel is analysed with an STFT, magnitudes are interpolated
// between analysis frames, and phases are accumulated from the measured
// instantaneous frequency. The output holds exactly StretchedLength samples
// per channel.
func PhaseVocoder(buf audio.Buffer, factor float64) (audio.Buffer, error) {
	if err := checkStretch(buf, factor); err != nil {
		return audio.Buffer{}, err
	}
	if buf.Frames() < DefaultWindow {
		return audio.Buffer{}, fmt.Errorf("%w: %d samples < %d", ErrClipTooShort, buf.Frames(), DefaultWindow)
	}
	want := StretchedLength(buf.Frames(), factor)
	channels := make([][]float64, buf.Channels)
	for c := range buf.Channels {
		channels[c] = vocode(buf.Channel(c), factor, want)
	}
	return audio.FromChannels(channels, buf.SampleRate), nil
}

func vocode(x []float64, rate float64, want int) []float64 {
	st := NewSTFT(DefaultWindow, DefaultHop)
	spec := st.Spectrogram(x)
	bins := st.Bins()

	// Trailing zero frame so frame t+1 always exists.
	spec = append(spec, make([]complex128, bins))

	var steps []float64
	for t := 0.0; t < float64(len(spec)-1); t += rate {
		steps = append(steps, t)
	}

	advance := make([]float64, bins)
	for k := range bins {
		advance[k] = math.Pi * float64(st.Hop) * float64(k) / float64(bins-1)
	}
	phase := make([]float64, bins)
	for k := range bins {
		phase[k] = cmplx.Phase(spec[0][k])
	}

	syn := st.NewSynthesizer(len(steps), st.Hop)
	out := make([]complex128, bins)
	for i, step := range steps {
		t := int(step)
		alpha := step - float64(t)
		a, b := spec[t], spec[t+1]
		for k := range bins {
			ma, pa := magPhase(a[k])
			mb, pb := magPhase(b[k])
			mag := (1-alpha)*ma + alpha*mb
			out[k] = cmplx.Rect(mag, phase[k])
			dphi := princArg(pb - pa - advance[k])
			phase[k] += advance[k] + dphi
		}
		syn.Add(i, out)
	}
	return fitLength(syn.Result(want), want)
}

// OLA time-stretches buf by factor with windowed overlap-add in the time
// domain. It preserves pitch and is cheaper than PhaseVocoder at the cost of
// audible phasing on tonal material.
func OLA(buf audio.Buffer, factor float64) (audio.Buffer, error) {
	if err := checkStretch(buf, factor); err != nil {
		return audio.Buffer{}, err
	}
	const size = 512
	if buf.Frames() < size {
		return audio.Buffer{}, fmt.Errorf("%w: %d samples < %d", ErrClipTooShort, buf.Frames(), size)
	}
	want := StretchedLength(buf.Frames(), factor)
	synHop := size / 4
	anaHop := float64(synHop) * factor

	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size))
	}

	channels := make([][]float64, buf.Channels)
	for c := range buf.Channels {
		x := buf.Channel(c)
		frames := want/synHop + 1
		acc := make([]float64, frames*synHop+size)
		norm := make([]float64, len(acc))
		for f := range frames {
			src := int(math.Round(float64(f) * anaHop))
			dst := f * synHop
			for i := range size {
				if src+i >= len(x) {
					break
				}
				acc[dst+i] += x[src+i] * window[i]
				norm[dst+i] += window[i]
			}
		}
		out := make([]float64, want)
		for i := range want {
			if norm[i] > 1e-3 {
				out[i] = acc[i] / norm[i]
			}
		}
		channels[c] = out
	}
	return audio.FromChannels(channels, buf.SampleRate), nil
}

// ResampleStretch changes the length of buf by factor through linear
// resampling. Pitch shifts with tempo; it is the last-resort stretcher for
// clips too short for the other methods.
func ResampleStretch(buf audio.Buffer, factor float64) (audio.Buffer, error) {
	if err := checkStretch(buf, factor); err != nil {
		return audio.Buffer{}, err
	}
	want := StretchedLength(buf.Frames(), factor)
	if want == 0 {
		return audio.Buffer{SampleRate: buf.SampleRate, Channels: buf.Channels}, nil
	}
	ch := buf.Channels
	n := buf.Frames()
	out := make([]int16, want*ch)
	for i := range want {
		pos := float64(i) * float64(n-1) / float64(max(want-1, 1))
		j := int(pos)
		frac := pos - float64(j)
		next := min(j+1, n-1)
		for c := range ch {
			s0 := float64(buf.Samples[j*ch+c])
			s1 := float64(buf.Samples[next*ch+c])
			out[i*ch+c] = int16(math.Round(s0*(1-frac) + s1*frac))
		}
	}
	return audio.Buffer{Samples: out, SampleRate: buf.SampleRate, Channels: ch}, nil
}

func checkStretch(buf audio.Buffer, factor float64) error {
	if math.IsNaN(factor) || factor <= 0 || math.IsInf(factor, 0) {
		return fmt.Errorf("dsp: stretch: invalid factor %v", factor)
	}
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("dsp: stretch: %w", err)
	}
	if buf.IsEmpty() {
		return fmt.Errorf("dsp: stretch: %w", audio.ErrEmptyBuffer)
	}
	return nil
}

func fitLength(x []float64, n int) []float64 {
	if len(x) >= n {
		return x[:n]
	}
	return append(x, make([]float64, n-len(x))...)
}
