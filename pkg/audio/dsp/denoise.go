package dsp

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
)

var (
	// ErrNoiseReductionUnavailable is returned, together with the unmodified
	// input, when the noise profile cannot be estimated. Callers should treat
	// it as a warning and continue with the original audio.
	ErrNoiseReductionUnavailable = errors.New("dsp: noise reduction unavailable")

	// ErrInvalidSensitivity is returned when sensitivity is outside [0, 1].
	ErrInvalidSensitivity = errors.New("dsp: sensitivity must be within [0, 1]")
)

// NoiseReducer performs stationary spectral gating: a single noise profile
// (per-bin mean and deviation of the dB magnitude over the whole clip) sets a
// threshold, bins below it are attenuated, and the gate is smoothed in time
// and frequency before resynthesis.
//
// The zero value is ready to use with the defaults below.
type NoiseReducer struct {
	// WindowSize and Hop configure the STFT. Defaults: 1024 / 256.
	WindowSize int
	Hop        int

	// ThresholdStd is the number of standard deviations above the mean dB
	// level at which a bin counts as signal. Default: 1.5.
	ThresholdStd float64

	// FreqSmoothHz and TimeSmoothMs are the half-widths of the triangular
	// mask smoothing kernel. Defaults: 500 Hz / 50 ms.
	FreqSmoothHz float64
	TimeSmoothMs float64
}

func (r NoiseReducer) withDefaults() NoiseReducer {
	if r.WindowSize <= 0 {
		r.WindowSize = DefaultWindow
	}
	if r.Hop <= 0 {
		r.Hop = DefaultHop
	}
	if r.ThresholdStd <= 0 {
		r.ThresholdStd = 1.5
	}
	if r.FreqSmoothHz <= 0 {
		r.FreqSmoothHz = 500
	}
	if r.TimeSmoothMs <= 0 {
		r.TimeSmoothMs = 50
	}
	return r
}

// Reduce returns buf with stationary background noise attenuated. The output
// has the same sample rate, channel count and length as buf. Sensitivity is
// the proportion of attenuation applied to gated bins: 0 leaves the audio
// untouched, 1 removes gated bins entirely.
//
// When the noise profile cannot be estimated (silent input, input shorter than
// one analysis window, non-finite output) Reduce returns buf unchanged along
// with an error wrapping ErrNoiseReductionUnavailable.
func (r NoiseReducer) Reduce(ctx context.Context, buf audio.Buffer, sensitivity float64) (audio.Buffer, error) {
	if math.IsNaN(sensitivity) || sensitivity < 0 || sensitivity > 1 {
		return audio.Buffer{}, fmt.Errorf("%w: got %v", ErrInvalidSensitivity, sensitivity)
	}
	if err := buf.Validate(); err != nil {
		return audio.Buffer{}, fmt.Errorf("dsp: reduce noise: %w", err)
	}
	r = r.withDefaults()

	if buf.Frames() < r.WindowSize {
		return buf, fmt.Errorf("%w: %d samples is shorter than one %d-sample window",
			ErrNoiseReductionUnavailable, buf.Frames(), r.WindowSize)
	}
	if isSilent(buf) {
		return buf, fmt.Errorf("%w: input is silent", ErrNoiseReductionUnavailable)
	}
	if sensitivity == 0 {
		return buf, nil
	}

	channels := make([][]float64, buf.Channels)
	g, ctx := errgroup.WithContext(ctx)
	for c := range buf.Channels {
		g.Go(func() error {
			out, err := r.reduceChannel(ctx, buf.Channel(c), buf.SampleRate, sensitivity)
			if err != nil {
				return err
			}
			channels[c] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNoiseReductionUnavailable) {
			return buf, err
		}
		return audio.Buffer{}, fmt.Errorf("dsp: reduce noise: %w", err)
	}
	return audio.FromChannels(channels, buf.SampleRate), nil
}

func (r NoiseReducer) reduceChannel(ctx context.Context, x []float64, rate int, sensitivity float64) ([]float64, error) {
	st := NewSTFT(r.WindowSize, r.Hop)
	padded := st.Pad(x)
	frames := st.Frames(len(x))
	bins := st.Bins()

	// Pass 1: per-bin noise profile.
	sum := make([]float64, bins)
	sumSq := make([]float64, bins)
	spec := make([]complex128, bins)
	for t := range frames {
		spec = st.Analyze(padded, t, spec)
		for k, c := range spec {
			db := toDB(c)
			sum[k] += db
			sumSq[k] += db * db
		}
	}
	thresh := make([]float64, bins)
	for k := range bins {
		mean := sum[k] / float64(frames)
		variance := max(sumSq[k]/float64(frames)-mean*mean, 0)
		thresh[k] = mean + r.ThresholdStd*math.Sqrt(variance)
		if math.IsNaN(thresh[k]) || math.IsInf(thresh[k], 0) {
			return nil, fmt.Errorf("%w: non-finite noise threshold in bin %d", ErrNoiseReductionUnavailable, k)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Pass 2: binary gate, smoothed along frequency.
	nf := max(int(math.Round(r.FreqSmoothHz/(float64(rate)/float64(r.WindowSize)))), 1)
	nt := max(int(math.Round(r.TimeSmoothMs/(float64(r.Hop)/float64(rate)*1000))), 1)
	freqKernel := triangle(nf)
	timeKernel := triangle(nt)

	gate := make([]float64, bins)
	mask := make([][]float32, frames)
	for t := range frames {
		spec = st.Analyze(padded, t, spec)
		for k, c := range spec {
			if toDB(c) > thresh[k] {
				gate[k] = 1
			} else {
				gate[k] = 0
			}
		}
		row := make([]float32, bins)
		for k := range bins {
			row[k] = float32(convolveAt(gate, k, freqKernel))
		}
		mask[t] = row
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Pass 3: time smoothing, gain, resynthesis.
	syn := st.NewSynthesizer(frames, st.Hop)
	for t := range frames {
		spec = st.Analyze(padded, t, spec)
		for k := range bins {
			m := smoothTime(mask, t, k, timeKernel)
			gain := 1 - sensitivity*(1-m)
			spec[k] *= complex(gain, 0)
		}
		syn.Add(t, spec)
	}
	out := syn.Result(len(x))
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite output at sample %d", ErrNoiseReductionUnavailable, i)
		}
	}
	return out, nil
}

// smoothTime returns the time-smoothed mask value at (t, k).
func smoothTime(mask [][]float32, t, k int, kernel []float64) float64 {
	half := len(kernel) / 2
	var acc, wsum float64
	for j, w := range kernel {
		tt := t + j - half
		if tt < 0 || tt >= len(mask) {
			continue
		}
		acc += float64(mask[tt][k]) * w
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return acc / wsum
}

// convolveAt returns the kernel-weighted average of x around i, renormalised
// at the edges.
func convolveAt(x []float64, i int, kernel []float64) float64 {
	half := len(kernel) / 2
	var acc, wsum float64
	for j, w := range kernel {
		ii := i + j - half
		if ii < 0 || ii >= len(x) {
			continue
		}
		acc += x[ii] * w
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return acc / wsum
}

// triangle returns a symmetric triangular kernel of 2n+1 taps peaking at 1.
func triangle(n int) []float64 {
	k := make([]float64, 2*n+1)
	for i := range k {
		k[i] = 1 - math.Abs(float64(i-n))/float64(n+1)
	}
	return k
}

const minMagnitude = 1e-10

func toDB(c complex128) float64 {
	m, _ := magPhase(c)
	return 20 * math.Log10(max(m, minMagnitude))
}

func isSilent(buf audio.Buffer) bool {
	for _, s := range buf.Samples {
		if s != 0 {
			return false
		}
	}
	return true
}
