package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/anujsonawane60/my-video-pro-app/internal/config"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/clean"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
	"github.com/anujsonawane60/my-video-pro-app/pkg/resynth"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  log_level: debug
  metrics_addr: ":9464"

cleaning:
  noise_sensitivity: 0
  vad_aggressiveness: 3
  frame_ms: 20
  min_speech_frames: 4
  padding_frames: 0
  mode: drop
  remove_fillers: true
  fillers: [um, uh]

resynth:
  tolerance_ms: 30
  max_speed_factor: 1.25
  stretch: resample
  concurrency: 8

transcription:
  language: de
  chunk_seconds: 120

providers:
  stt:
    - name: whisper
      base_url: http://localhost:8080
    - name: openai
      api_key: sk-test
      model: whisper-1
  tts:
    - name: elevenlabs
      api_key: el-test
      options:
        stability: 0.4
    - name: coqui
      base_url: http://localhost:5002
      options:
        voice_id: p225
  vad:
    name: webrtc
  segments:
    name: silero
    options:
      model_path: /models/silero_vad.onnx
  circuit_breaker:
    max_failures: 2
    reset_timeout: 1m

voice:
  provider: elevenlabs
  voice_id: 21m00Tcm4TlvDq8ikWAM
  name: Rachel

media:
  ffmpeg_path: /usr/bin/ffmpeg
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Server.MetricsAddr != ":9464" {
		t.Errorf("server.metrics_addr: got %q", cfg.Server.MetricsAddr)
	}
	if len(cfg.Providers.STT) != 2 || cfg.Providers.STT[1].Name != "openai" {
		t.Fatalf("providers.stt: got %+v", cfg.Providers.STT)
	}
	if cfg.Providers.TTS[1].Options["voice_id"] != "p225" {
		t.Errorf("providers.tts[1].options.voice_id: got %v", cfg.Providers.TTS[1].Options["voice_id"])
	}
	if cfg.Providers.CircuitBreaker.ResetTimeout != time.Minute {
		t.Errorf("circuit_breaker.reset_timeout: got %v, want 1m", cfg.Providers.CircuitBreaker.ResetTimeout)
	}
	if got := cfg.Voice.Profile(); got.ID != "21m00Tcm4TlvDq8ikWAM" || got.Provider != "elevenlabs" {
		t.Errorf("voice profile: got %+v", got)
	}
	if cfg.Transcription.ChunkOptions().ChunkSeconds != 120 {
		t.Errorf("chunk_seconds: got %d", cfg.Transcription.ChunkOptions().ChunkSeconds)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	for _, doc := range []string{"", "{}"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", doc, err)
		}
		if cfg.Cleaning.Params() != clean.DefaultParams() {
			t.Errorf("%q: cleaning params = %+v, want defaults", doc, cfg.Cleaning.Params())
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("cleaning:\n  nosie_sensitivity: 0.5\n"))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

// ── Section conversion ────────────────────────────────────────────────────────

func TestCleaningConfig_Params(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	p := cfg.Cleaning.Params()
	want := clean.Params{
		NoiseSensitivity:  0,
		VADAggressiveness: 3,
		Detector: clean.DetectorConfig{
			FrameMs:          20,
			MinSpeechFrames:  4,
			MinSilenceFrames: 5,
			PaddingFrames:    0,
		},
		Mode: clean.ModeDrop,
	}
	if p != want {
		t.Errorf("Params() = %+v, want %+v", p, want)
	}
}

func TestResynthConfig_Options(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	o := cfg.Resynth.Options()
	want := resynth.Options{ToleranceMs: 30, MaxSpeedFactor: 1.25, Stretch: resynth.StretchResample}
	if o != want {
		t.Errorf("Options() = %+v, want %+v", o, want)
	}
	if def := (config.ResynthConfig{}).Options(); def != resynth.DefaultOptions() {
		t.Errorf("zero section = %+v, want defaults", def)
	}
}

func TestTranscriptionConfig_STTConfig(t *testing.T) {
	tc := config.TranscriptionConfig{Language: "fr", Prompt: "Kubernetes"}
	if got := tc.STTConfig(false); got.WordTimestamps {
		t.Error("word timestamps should stay off")
	}
	got := tc.STTConfig(true)
	want := stt.Config{Language: "fr", WordTimestamps: true, Prompt: "Kubernetes"}
	if got != want {
		t.Errorf("STTConfig(true) = %+v, want %+v", got, want)
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidCleaning(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"sensitivity", "cleaning:\n  noise_sensitivity: 1.5\n"},
		{"aggressiveness", "cleaning:\n  vad_aggressiveness: 4\n"},
		{"frame", "cleaning:\n  frame_ms: 25\n"},
		{"mode", "cleaning:\n  mode: erase\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if !errors.Is(err, clean.ErrInvalidParams) {
				t.Fatalf("err = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestValidate_InvalidResynth(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("resynth:\n  max_speed_factor: 0.5\n  stretch: granular\n"))
	if !errors.Is(err, resynth.ErrInvalidOptions) {
		t.Fatalf("err = %v, want ErrInvalidOptions", err)
	}
}

func TestValidate_StationaryFalseIsAccepted(t *testing.T) {
	if _, err := config.LoadFromReader(strings.NewReader("cleaning:\n  stationary: false\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ── Registry: unknown providers ───────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nope"}
	checks := map[string]func() error{
		"stt":      func() error { _, err := reg.CreateSTT(entry); return err },
		"tts":      func() error { _, err := reg.CreateTTS(entry); return err },
		"vad":      func() error { _, err := reg.CreateVAD(entry); return err },
		"segments": func() error { _, err := reg.CreateSegmentDetector(entry); return err },
	}
	for kind, fn := range checks {
		err := fn()
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("%s: err = %v, want ErrProviderNotRegistered", kind, err)
		}
		if err != nil && !strings.Contains(err.Error(), kind+`/"nope"`) {
			t.Errorf("%s: error should name the kind, got %v", kind, err)
		}
	}
}

// ── Registry with registered factories ───────────────────────────────────────

func TestRegistry_RegisteredSTT(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubSTT{}
	reg.RegisterSTT("stub", func(e config.ProviderEntry) (stt.Provider, error) {
		return want, nil
	})
	got, err := reg.CreateSTT(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
}

func TestRegistry_RegisteredTTS(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubTTS{}
	var gotEntry config.ProviderEntry
	reg.RegisterTTS("stub", func(e config.ProviderEntry) (tts.Provider, error) {
		gotEntry = e
		return want, nil
	})
	got, err := reg.CreateTTS(config.ProviderEntry{Name: "stub", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned provider is not the expected instance")
	}
	if gotEntry.APIKey != "k" {
		t.Errorf("factory saw entry %+v", gotEntry)
	}
}

func TestRegistry_RegisteredVADAndSegments(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterVAD("stub", func(config.ProviderEntry) (vad.Engine, error) { return &stubVAD{}, nil })
	reg.RegisterSegmentDetector("stub", func(config.ProviderEntry) (vad.SegmentDetector, error) { return &stubSegments{}, nil })

	if _, err := reg.CreateVAD(config.ProviderEntry{Name: "stub"}); err != nil {
		t.Errorf("CreateVAD: %v", err)
	}
	if _, err := reg.CreateSegmentDetector(config.ProviderEntry{Name: "stub"}); err != nil {
		t.Errorf("CreateSegmentDetector: %v", err)
	}
	if names := reg.Names("vad"); len(names) != 1 || names[0] != "stub" {
		t.Errorf("Names(vad) = %v", names)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterSTT("broken", func(e config.ProviderEntry) (stt.Provider, error) {
		return nil, wantErr
	})
	_, err := reg.CreateSTT(config.ProviderEntry{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := config.NewRegistry()
	for _, n := range []string{"whisper", "assemblyai", "openai"} {
		reg.RegisterSTT(n, func(config.ProviderEntry) (stt.Provider, error) { return &stubSTT{}, nil })
	}
	got := reg.Names("stt")
	want := []string{"assemblyai", "openai", "whisper"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names(stt) = %v, want %v", got, want)
	}
	if reg.Names("llm") != nil {
		t.Error("unknown kind should have no names")
	}
}

// ── Stub implementations (satisfy interfaces for the compiler) ────────────────

// stubSTT implements stt.Provider.
type stubSTT struct{}

func (s *stubSTT) Transcribe(context.Context, audio.Buffer, stt.Config) (types.Transcript, error) {
	return types.Transcript{}, nil
}

// stubTTS implements tts.Provider.
type stubTTS struct{}

func (s *stubTTS) Synthesize(context.Context, string, types.VoiceProfile) (audio.Buffer, error) {
	return audio.Buffer{}, nil
}
func (s *stubTTS) ListVoices(context.Context) ([]types.VoiceProfile, error) { return nil, nil }

// stubVAD implements vad.Engine.
type stubVAD struct{}

func (s *stubVAD) NewSession(vad.Config) (vad.SessionHandle, error) { return nil, nil }

// stubSegments implements vad.SegmentDetector.
type stubSegments struct{}

func (s *stubSegments) DetectSegments(context.Context, audio.Buffer) ([]types.Segment, error) {
	return nil, nil
}
