package dsp_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio/dsp"
)

const rate = 16000

func noise(r *rand.Rand, n int, amp float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = (r.Float64()*2 - 1) * amp
	}
	return x
}

func sine(n int, freq, amp float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return x
}

func rms(b audio.Buffer, from, to int) float64 {
	var sum float64
	for _, s := range b.Samples[from:to] {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(to-from))
}

func TestReduce_PreservesShape(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 1))
	buf := audio.FromChannels([][]float64{noise(r, 20000, 0.1), noise(r, 20000, 0.1)}, 22050)
	out, err := dsp.NoiseReducer{}.Reduce(context.Background(), buf, 0.5)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if out.Format() != buf.Format() || out.Frames() != buf.Frames() {
		t.Errorf("shape changed: %s/%d → %s/%d", buf.Format(), buf.Frames(), out.Format(), out.Frames())
	}
}

func TestReduce_GatesBackgroundKeepsBurst(t *testing.T) {
	r := rand.New(rand.NewPCG(2, 3))
	n := 2 * rate
	x := noise(r, n, 0.02)
	burstFrom, burstTo := rate, rate+rate/5
	for i := burstFrom; i < burstTo; i++ {
		x[i] += (r.Float64()*2 - 1) * 0.8
	}
	buf := audio.FromChannels([][]float64{x}, rate)

	out, err := dsp.NoiseReducer{}.Reduce(context.Background(), buf, 1)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}

	bgIn, bgOut := rms(buf, 1000, rate/2), rms(out, 1000, rate/2)
	if bgOut > 0.3*bgIn {
		t.Errorf("background rms %.1f → %.1f, want ≤ 30%%", bgIn, bgOut)
	}
	burstIn := rms(buf, burstFrom+800, burstTo-800)
	burstOut := rms(out, burstFrom+800, burstTo-800)
	if burstOut < 0.6*burstIn {
		t.Errorf("burst rms %.1f → %.1f, want ≥ 60%%", burstIn, burstOut)
	}
}

func TestReduce_ZeroSensitivityIsIdentity(t *testing.T) {
	r := rand.New(rand.NewPCG(4, 4))
	buf := audio.FromChannels([][]float64{noise(r, 4096, 0.2)}, rate)
	out, err := dsp.NoiseReducer{}.Reduce(context.Background(), buf, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	for i := range buf.Samples {
		if out.Samples[i] != buf.Samples[i] {
			t.Fatalf("sample %d changed", i)
		}
	}
}

func TestReduce_SoftFailures(t *testing.T) {
	tests := []struct {
		name string
		buf  audio.Buffer
	}{
		{"silent", audio.Silence(audio.VADFormat, rate)},
		{"shorter than window", audio.NewBuffer([]int16{100, -100, 50}, rate, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := dsp.NoiseReducer{}.Reduce(context.Background(), tt.buf, 0.2)
			if !errors.Is(err, dsp.ErrNoiseReductionUnavailable) {
				t.Fatalf("err = %v, want ErrNoiseReductionUnavailable", err)
			}
			if out.Frames() != tt.buf.Frames() || out.Format() != tt.buf.Format() {
				t.Error("expected the input to be returned unchanged")
			}
		})
	}
}

func TestReduce_InvalidSensitivity(t *testing.T) {
	buf := audio.Silence(audio.VADFormat, 2048)
	for _, s := range []float64{-0.1, 1.1, math.NaN()} {
		if _, err := (dsp.NoiseReducer{}).Reduce(context.Background(), buf, s); !errors.Is(err, dsp.ErrInvalidSensitivity) {
			t.Errorf("sensitivity %v: err = %v, want ErrInvalidSensitivity", s, err)
		}
	}
}

func TestReduce_Cancelled(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 5))
	buf := audio.FromChannels([][]float64{noise(r, rate, 0.2)}, rate)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (dsp.NoiseReducer{}).Reduce(ctx, buf, 0.5); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func zeroCrossingRate(b audio.Buffer, from, to int) float64 {
	n := 0
	for i := from + 1; i < to; i++ {
		if (b.Samples[i-1] < 0) != (b.Samples[i] < 0) {
			n++
		}
	}
	return float64(n) * rate / float64(to-from)
}

func TestPhaseVocoder_LengthAndPitch(t *testing.T) {
	in := audio.FromChannels([][]float64{sine(int(1.2*rate), 440, 0.5)}, rate)
	out, err := dsp.PhaseVocoder(in, 1.2)
	if err != nil {
		t.Fatalf("PhaseVocoder: %v", err)
	}
	if out.Frames() != rate {
		t.Fatalf("frames = %d, want %d", out.Frames(), rate)
	}
	got := zeroCrossingRate(out, rate/4, 3*rate/4)
	if math.Abs(got-880) > 880*0.05 {
		t.Errorf("zero crossings/s = %.0f, want ≈880 (pitch preserved)", got)
	}
}

func TestPhaseVocoder_TooShort(t *testing.T) {
	in := audio.NewBuffer(make([]int16, 100), rate, 1)
	if _, err := dsp.PhaseVocoder(in, 1.2); !errors.Is(err, dsp.ErrClipTooShort) {
		t.Errorf("err = %v, want ErrClipTooShort", err)
	}
}

func TestOLA_Length(t *testing.T) {
	in := audio.FromChannels([][]float64{sine(15000, 300, 0.5), sine(15000, 300, 0.5)}, rate)
	out, err := dsp.OLA(in, 1.5)
	if err != nil {
		t.Fatalf("OLA: %v", err)
	}
	if out.Frames() != 10000 || out.Channels != 2 {
		t.Errorf("got %d frames × %d ch, want 10000 × 2", out.Frames(), out.Channels)
	}
}

func TestResampleStretch(t *testing.T) {
	in := audio.NewBuffer([]int16{0, 100, 200, 300, 400, 500}, rate, 1)
	out, err := dsp.ResampleStretch(in, 1.5)
	if err != nil {
		t.Fatalf("ResampleStretch: %v", err)
	}
	if out.Frames() != 4 {
		t.Fatalf("frames = %d, want 4", out.Frames())
	}
	if out.Samples[0] != 0 || out.Samples[3] != 500 {
		t.Errorf("endpoints = %d, %d, want 0, 500", out.Samples[0], out.Samples[3])
	}
}

func TestStretch_InvalidFactor(t *testing.T) {
	in := audio.NewBuffer(make([]int16, 2048), rate, 1)
	for _, f := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := dsp.ResampleStretch(in, f); err == nil {
			t.Errorf("factor %v: expected error", f)
		}
	}
}
