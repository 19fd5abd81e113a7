// Package dsp implements the spectral processing used by the cleaning and
// resynthesis stages: a short-time Fourier transform, stationary noise
// reduction by spectral gating, and pitch-preserving time stretching.
//
// All functions operate on float64 samples scaled to [-1, 1). Conversion to
// and from audio.Buffer happens at the package boundary.
//
// STFT values are not safe for concurrent use; create one per goroutine.
package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Default analysis parameters.
const (
	DefaultWindow = 1024
	DefaultHop    = 256
)

// STFT computes centred short-time Fourier transforms with a periodic Hann
// window. The signal is zero-padded by Size/2 on both sides so that frame t is
// centred on sample t×Hop.
type STFT struct {
	Size int
	Hop  int

	window []float64
	fft    *fourier.FFT
	frame  []float64
}

// NewSTFT returns an STFT with the given window size and hop.
func NewSTFT(size, hop int) *STFT {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size))
	}
	return &STFT{
		Size:   size,
		Hop:    hop,
		window: w,
		fft:    fourier.NewFFT(size),
		frame:  make([]float64, size),
	}
}

// Bins returns the number of frequency bins per frame.
func (s *STFT) Bins() int {
	return s.Size/2 + 1
}

// Frames returns the number of frames produced for a signal of n samples.
func (s *STFT) Frames(n int) int {
	return n/s.Hop + 1
}

// Pad returns x centred in a zero buffer large enough for every frame.
func (s *STFT) Pad(x []float64) []float64 {
	half := s.Size / 2
	total := (s.Frames(len(x))-1)*s.Hop + s.Size
	out := make([]float64, total)
	copy(out[half:], x)
	return out
}

// Analyze returns the spectrum of frame t of a signal already passed through
// Pad. dst is reused when it has capacity for Bins() values.
func (s *STFT) Analyze(padded []float64, t int, dst []complex128) []complex128 {
	off := t * s.Hop
	for i := range s.Size {
		s.frame[i] = padded[off+i] * s.window[i]
	}
	if cap(dst) < s.Bins() {
		dst = make([]complex128, s.Bins())
	}
	return s.fft.Coefficients(dst[:s.Bins()], s.frame)
}

// Spectrogram returns every frame of x.
func (s *STFT) Spectrogram(x []float64) [][]complex128 {
	padded := s.Pad(x)
	n := s.Frames(len(x))
	out := make([][]complex128, n)
	for t := range n {
		out[t] = s.Analyze(padded, t, nil)
	}
	return out
}

// Synthesizer accumulates inverse-transformed frames by weighted overlap-add.
type Synthesizer struct {
	stft *STFT
	hop  int
	out  []float64
	norm []float64
	seq  []float64
}

// NewSynthesizer prepares overlap-add for frames placed hop samples apart.
// hop may differ from the analysis hop (time stretching).
func (s *STFT) NewSynthesizer(frames, hop int) *Synthesizer {
	total := (frames-1)*hop + s.Size
	if frames <= 0 {
		total = 0
	}
	return &Synthesizer{
		stft: s,
		hop:  hop,
		out:  make([]float64, total),
		norm: make([]float64, total),
		seq:  make([]float64, s.Size),
	}
}

// Add inverse-transforms coeffs and overlap-adds it at frame position t.
func (y *Synthesizer) Add(t int, coeffs []complex128) {
	s := y.stft
	seq := s.fft.Sequence(y.seq, coeffs)
	scale := 1 / float64(s.Size)
	off := t * y.hop
	for i := range s.Size {
		w := s.window[i]
		y.out[off+i] += seq[i] * scale * w
		y.norm[off+i] += w * w
	}
}

// Result returns n samples of the synthesized signal with the centring pad
// removed and the window overlap normalised.
func (y *Synthesizer) Result(n int) []float64 {
	half := y.stft.Size / 2
	out := make([]float64, n)
	for i := range n {
		j := i + half
		if j >= len(y.out) {
			break
		}
		if y.norm[j] > 1e-8 {
			out[i] = y.out[j] / y.norm[j]
		}
	}
	return out
}

// princArg wraps a phase to (-π, π].
func princArg(p float64) float64 {
	return p - 2*math.Pi*math.Round(p/(2*math.Pi))
}

func magPhase(c complex128) (float64, float64) {
	return cmplx.Abs(c), cmplx.Phase(c)
}
