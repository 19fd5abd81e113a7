package resynth_test

import (
	"errors"
	"math"
	"testing"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/resynth"
)

func constantClip(frames int, v int16) audio.Buffer {
	s := make([]int16, frames)
	for i := range s {
		s[i] = v
	}
	return audio.NewBuffer(s, 16000, 1)
}

func sineClip(frames int) audio.Buffer {
	s := make([]int16, frames)
	for i := range s {
		s[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return audio.NewBuffer(s, 16000, 1)
}

func TestReconcile_WithinTolerance(t *testing.T) {
	clip := constantClip(16480, 100) // 1030 ms
	got, err := resynth.Reconcile(clip, 1000, resynth.DefaultOptions())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got.Frames() != clip.Frames() {
		t.Errorf("frames = %d, want unchanged %d", got.Frames(), clip.Frames())
	}
}

func TestReconcile_PadsTwentyEighty(t *testing.T) {
	clip := constantClip(6400, 1000) // 400 ms
	got, err := resynth.Reconcile(clip, 1000, resynth.DefaultOptions())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got.DurationMs() != 1000 || got.Frames() != 16000 {
		t.Fatalf("duration = %d ms (%d frames), want exactly 1000 ms", got.DurationMs(), got.Frames())
	}
	// 600 ms gap: 120 ms (1920 frames) before, 480 ms (7680 frames) after.
	if got.Samples[1919] != 0 || got.Samples[1920] != 1000 {
		t.Error("leading silence is not 120 ms")
	}
	if got.Samples[8319] != 1000 || got.Samples[8320] != 0 {
		t.Error("trailing silence is not 480 ms")
	}
}

func TestReconcile_Stretches(t *testing.T) {
	clip := sineClip(19200) // 1200 ms
	got, err := resynth.Reconcile(clip, 1000, resynth.DefaultOptions())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if ms := got.DurationMs(); ms < 950 || ms > 1050 {
		t.Errorf("duration = %d ms, want within [950, 1050]", ms)
	}
}

func TestReconcile_CapsSpeedFactor(t *testing.T) {
	clip := sineClip(48000) // 3000 ms, wants 3×
	got, err := resynth.Reconcile(clip, 1000, resynth.DefaultOptions())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got.Frames() != 32000 {
		t.Errorf("frames = %d, want 32000 (capped at 1.5×)", got.Frames())
	}

	opts := resynth.DefaultOptions()
	opts.TrimOverflow = true
	got, err = resynth.Reconcile(clip, 1000, opts)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got.Frames() != 16000 {
		t.Errorf("trimmed frames = %d, want 16000", got.Frames())
	}
}

func TestReconcile_StretchFallback(t *testing.T) {
	opts := resynth.Options{ToleranceMs: 0, MaxSpeedFactor: 1.5, Stretch: resynth.StretchPhaseVocoder}

	// 800 frames is too short for the vocoder but enough for OLA.
	got, err := resynth.Reconcile(sineClip(800), 40, opts)
	if err != nil {
		t.Fatalf("OLA fallback: %v", err)
	}
	if got.Frames() != 640 {
		t.Errorf("OLA frames = %d, want 640", got.Frames())
	}

	// 300 frames only fits the resampler.
	got, err = resynth.Reconcile(sineClip(300), 15, opts)
	if err != nil {
		t.Fatalf("resample fallback: %v", err)
	}
	if got.Frames() != 240 {
		t.Errorf("resample frames = %d, want 240", got.Frames())
	}
}

func TestReconcile_Invalid(t *testing.T) {
	clip := constantClip(1600, 1)
	for _, target := range []int{0, -20} {
		if _, err := resynth.Reconcile(clip, target, resynth.DefaultOptions()); !errors.Is(err, resynth.ErrInvalidTarget) {
			t.Errorf("target %d: err = %v, want ErrInvalidTarget", target, err)
		}
	}
	bad := resynth.Options{ToleranceMs: -1, MaxSpeedFactor: 0.5, Stretch: "warp"}
	if _, err := resynth.Reconcile(clip, 100, bad); !errors.Is(err, resynth.ErrInvalidOptions) {
		t.Errorf("bad options: err = %v", err)
	}
}
