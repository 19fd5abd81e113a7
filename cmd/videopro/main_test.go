package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/anujsonawane60/my-video-pro-app/internal/config"
	"github.com/anujsonawane60/my-video-pro-app/internal/media"
	"github.com/anujsonawane60/my-video-pro-app/internal/observe"
	"github.com/anujsonawane60/my-video-pro-app/internal/pipeline"
	"github.com/anujsonawane60/my-video-pro-app/internal/resilience"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	sttmock "github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt/mock"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	ttsmock "github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts/mock"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
	vadmock "github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad/mock"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad/webrtc"
	"github.com/anujsonawane60/my-video-pro-app/pkg/resynth"
	"github.com/anujsonawane60/my-video-pro-app/pkg/subtitle"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ─── helpers ──────────────────────────────────────────────────────────────────

const testConfigYAML = `
telemetry:
  disabled: true
cleaning:
  skip_noise_reduction: true
providers:
  stt:
    - name: fake
  tts:
    - name: fake
voice:
  voice_id: narrator
`

type cliEnv struct {
	dir     string
	cfgPath string
	ctx     *commandContext
	stdout  *bytes.Buffer
	stt     *sttmock.Provider
	tts     *ttsmock.Provider
	media   *fakeMedia
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "videopro.yaml")
	if err := os.WriteFile(cfgPath, []byte(testConfigYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	env := &cliEnv{
		dir:     dir,
		cfgPath: cfgPath,
		stdout:  &bytes.Buffer{},
		stt: &sttmock.Provider{Result: types.Transcript{
			Language: "en",
			Entries: []types.SubtitleEntry{
				{Index: 1, Start: 0.1, End: 0.5, Text: "hello there"},
				{Index: 2, Start: 0.6, End: 0.9, Text: "general"},
			},
		}},
		tts: &ttsmock.Provider{
			Clip:        audio.SilenceMs(audio.VADFormat, 300),
			QuotaResult: tts.Quota{CharacterLimit: 10000},
		},
		media: &fakeMedia{audio: audio.SilenceMs(audio.VADFormat, 1000)},
	}
	env.ctx = newCommandContext()
	env.ctx.stdout = env.stdout
	env.ctx.stderr = io.Discard
	env.ctx.media = env.media
	env.ctx.register = func(reg *config.Registry, _ *providerFactory) {
		reg.RegisterSTT("fake", func(config.ProviderEntry) (stt.Provider, error) { return env.stt, nil })
		reg.RegisterTTS("fake", func(config.ProviderEntry) (tts.Provider, error) { return env.tts, nil })
		reg.RegisterVAD("webrtc", func(config.ProviderEntry) (vad.Engine, error) {
			return &vadmock.Engine{Session: &vadmock.Session{EventResult: vad.VADEvent{Speech: true}}}, nil
		})
	}
	env.ctx.configFlag = cfgPath
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommandWith(e.ctx)
	cmd.SetArgs(append(args, "--config", e.cfgPath))
	return cmd.ExecuteContext(context.Background())
}

func (e *cliEnv) writeWAV(t *testing.T, name string, ms int) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := audio.WriteWAVFile(path, audio.SilenceMs(audio.VADFormat, ms)); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	return path
}

type fakeMedia struct {
	mu       sync.Mutex
	audio    audio.Buffer
	muxed    []media.MuxRequest
	checkErr error
}

func (m *fakeMedia) Check(context.Context) error { return m.checkErr }

func (m *fakeMedia) ExtractAudio(context.Context, string) (audio.Buffer, error) {
	return m.audio, nil
}

func (m *fakeMedia) Mux(_ context.Context, req media.MuxRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muxed = append(m.muxed, req)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// ─── commands ─────────────────────────────────────────────────────────────────

func TestTranscribeCommand(t *testing.T) {
	env := newCLIEnv(t)
	in := env.writeWAV(t, "talk.wav", 1000)
	out := filepath.Join(env.dir, "subs", "talk.srt")

	if err := env.run(t, "transcribe", in, "-o", out, "--language", "de"); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	entries, err := subtitle.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(entries) != 2 || entries[0].Text != "hello there" {
		t.Errorf("entries = %+v", entries)
	}
	if got := env.stt.Calls[0].Cfg.Language; got != "de" {
		t.Errorf("language = %q, want de", got)
	}
	if !strings.Contains(env.stdout.String(), "Wrote 2 entries") {
		t.Errorf("stdout = %q", env.stdout.String())
	}
}

func TestTranscribeCommand_Stdout(t *testing.T) {
	env := newCLIEnv(t)
	in := env.writeWAV(t, "talk.wav", 1000)

	if err := env.run(t, "transcribe", in); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if !strings.Contains(env.stdout.String(), "00:00:00,100 --> 00:00:00,500") {
		t.Errorf("stdout has no SRT timing line:\n%s", env.stdout.String())
	}
}

func TestCleanCommand(t *testing.T) {
	env := newCLIEnv(t)
	in := env.writeWAV(t, "talk.wav", 1000)
	out := filepath.Join(env.dir, "clean.wav")

	if err := env.run(t, "clean", in, "-o", out); err != nil {
		t.Fatalf("clean: %v", err)
	}
	got, err := audio.ReadWAVFile(out)
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if got.Frames() != 16000 {
		t.Errorf("frames = %d, want 16000", got.Frames())
	}
	if env.stt.CallCount() != 0 {
		t.Error("transcribed without --remove-fillers")
	}
}

func TestCleanCommand_RemoveFillersTranscribes(t *testing.T) {
	env := newCLIEnv(t)
	env.stt.Result.Words = []types.Word{
		{Text: "um", Start: 0.2, End: 0.4},
		{Text: "hello", Start: 0.5, End: 0.8},
	}
	in := env.writeWAV(t, "talk.wav", 1000)
	out := filepath.Join(env.dir, "clean.wav")

	if err := env.run(t, "clean", in, "-o", out, "--remove-fillers", "--mode", "drop"); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if env.stt.CallCount() == 0 {
		t.Fatal("no transcription for filler removal")
	}
	if !env.stt.Calls[0].Cfg.WordTimestamps {
		t.Error("word timestamps not requested")
	}
	got, err := audio.ReadWAVFile(out)
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if got.Frames() >= 16000 {
		t.Errorf("frames = %d, want the filler cut", got.Frames())
	}
}

func TestCleanCommand_Validation(t *testing.T) {
	env := newCLIEnv(t)
	in := env.writeWAV(t, "talk.wav", 200)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing output", []string{"clean", in}, "--output is required"},
		{"bad mode", []string{"clean", in, "-o", filepath.Join(env.dir, "x.wav"), "--mode", "cut"}, "--mode"},
		{"missing input", []string{"clean", filepath.Join(env.dir, "nope.wav"), "-o", "x.wav"}, "not found"},
		{"no args", []string{"clean"}, "provide the path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestDetectCommand(t *testing.T) {
	env := newCLIEnv(t)
	in := env.writeWAV(t, "talk.wav", 600)

	if err := env.run(t, "detect", in); err != nil {
		t.Fatalf("detect: %v", err)
	}
	out := env.stdout.String()
	for _, want := range []string{"Start", "Length", "0.60s", "clean"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestResynthCommand(t *testing.T) {
	env := newCLIEnv(t)
	srt := filepath.Join(env.dir, "in.srt")
	if err := subtitle.WriteFile(srt, []types.SubtitleEntry{
		{Index: 1, Start: 0, End: 0.5, Text: "first"},
		{Index: 2, Start: 1, End: 1.2, Text: "second"},
	}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out := filepath.Join(env.dir, "voice.wav")

	if err := env.run(t, "resynth", srt, "-o", out, "-v", "--voice-id", "other"); err != nil {
		t.Fatalf("resynth: %v", err)
	}
	got, err := audio.ReadWAVFile(out)
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if got.Seconds() < 1.19 {
		t.Errorf("output = %.2fs, want it to cover the last entry", got.Seconds())
	}
	for _, c := range env.tts.SynthesizeCalls {
		if c.Voice.ID != "other" {
			t.Errorf("voice = %q, want other", c.Voice.ID)
		}
	}
	if !strings.Contains(env.stdout.String(), string(resynth.ActionPad)) {
		t.Errorf("stdout has no adjustment table:\n%s", env.stdout.String())
	}
}

func TestProcessCommand(t *testing.T) {
	env := newCLIEnv(t)
	video := filepath.Join(env.dir, "talk.mp4")
	if err := os.WriteFile(video, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(env.dir, "out", "talk.mp4")
	srtOut := filepath.Join(env.dir, "talk.srt")

	err := env.run(t, "process", video, "-o", out, "--voice", "resynth", "--srt-out", srtOut, "--burn-subtitles")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(env.media.muxed) != 1 {
		t.Fatalf("mux calls = %d, want 1", len(env.media.muxed))
	}
	req := env.media.muxed[0]
	if req.Output != out || !req.BurnSubtitles || len(req.Subtitles) != 2 {
		t.Errorf("mux request = %+v", req)
	}
	if req.Audio.Frames() != env.media.audio.Frames() {
		t.Errorf("audio frames = %d, want %d", req.Audio.Frames(), env.media.audio.Frames())
	}
	if len(env.tts.SynthesizeCalls) != 2 {
		t.Errorf("synthesize calls = %d, want 2", len(env.tts.SynthesizeCalls))
	}
	if _, err := os.Stat(srtOut); err != nil {
		t.Errorf("srt-out not written: %v", err)
	}
}

func TestProvidersCommand(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.run(t, "providers"); err != nil {
		t.Fatalf("providers: %v", err)
	}
	out := env.stdout.String()
	for _, want := range []string{"fake", "primary", "webrtc", "selected"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestDoctorCommand(t *testing.T) {
	env := newCLIEnv(t)
	if err := env.run(t, "doctor"); err != nil {
		t.Fatalf("doctor: %v", err)
	}
	out := env.stdout.String()
	for _, want := range []string{"ffmpeg", "providers", "tts quota", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
	if env.tts.QuotaCallCount != 1 {
		t.Errorf("QuotaCallCount = %d, want 1", env.tts.QuotaCallCount)
	}
}

func TestDoctorCommand_Failures(t *testing.T) {
	env := newCLIEnv(t)
	env.media.checkErr = errors.New("ffmpeg: not found")
	env.tts.QuotaResult = tts.Quota{CharacterLimit: 100, CharacterCount: 100}

	err := env.run(t, "doctor")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, tts.ErrInsufficientCredits) {
		t.Errorf("err = %v, want ErrInsufficientCredits", err)
	}
	if !strings.Contains(err.Error(), "ffmpeg: not found") {
		t.Errorf("err = %v, want ffmpeg failure", err)
	}
	if !strings.Contains(env.stdout.String(), "FAIL") {
		t.Errorf("stdout missing FAIL:\n%s", env.stdout.String())
	}
}

// ─── config ───────────────────────────────────────────────────────────────────

func TestEnsureConfig_FlagOverrides(t *testing.T) {
	env := newCLIEnv(t)
	env.ctx.logLevelFlag = "DEBUG"
	env.ctx.metricsFlag = ":9464"

	cfg, err := env.ctx.ensureConfig()
	if err != nil {
		t.Fatalf("ensureConfig: %v", err)
	}
	if cfg.Server.LogLevel != config.LogDebug || cfg.Server.MetricsAddr != ":9464" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.Telemetry.Disabled {
		t.Error("file settings lost")
	}
}

func TestEnsureConfig_Errors(t *testing.T) {
	t.Parallel()

	missing := newCommandContext()
	missing.configFlag = filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := missing.ensureConfig(); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file: err = %v", err)
	}

	level := newCommandContext()
	level.logLevelFlag = "loud"
	if _, err := level.ensureConfig(); err == nil || !strings.Contains(err.Error(), "--log-level") {
		t.Errorf("bad level: err = %v", err)
	}

	defaults := newCommandContext()
	cfg, err := defaults.ensureConfig()
	if err != nil || cfg == nil {
		t.Fatalf("no config file: cfg=%v err=%v", cfg, err)
	}
}

// ─── providers ────────────────────────────────────────────────────────────────

func TestBuildProviders_Chains(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	for _, name := range []string{"a", "b"} {
		reg.RegisterSTT(name, func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })
		reg.RegisterTTS(name, func(config.ProviderEntry) (tts.Provider, error) { return &ttsmock.Provider{}, nil })
	}
	reg.RegisterVAD("webrtc", func(config.ProviderEntry) (vad.Engine, error) { return nil, webrtc.ErrUnavailable })
	reg.RegisterVAD("energy", func(config.ProviderEntry) (vad.Engine, error) { return &vadmock.Engine{}, nil })

	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			STT: []config.ProviderEntry{{Name: "a"}, {Name: "b"}},
			TTS: []config.ProviderEntry{{Name: "a"}},
		},
		Voice: config.VoiceConfig{VoiceID: "v1"},
	}
	ps, err := buildProviders(cfg, reg, noopMetrics(t), discardLogger())
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	fb, ok := ps.STT.(*resilience.STTFallback)
	if !ok {
		t.Fatalf("STT = %T, want *resilience.STTFallback", ps.STT)
	}
	if names := fb.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("STT chain = %v", names)
	}
	if _, ok := ps.TTS.(*ttsmock.Provider); !ok {
		t.Errorf("single TTS entry wrapped: %T", ps.TTS)
	}
	if _, ok := ps.VAD.(*vadmock.Engine); !ok {
		t.Errorf("VAD = %T, want the energy fallback", ps.VAD)
	}
	if cfg.Voice.Provider != "a" {
		t.Errorf("voice provider = %q, want the first TTS entry", cfg.Voice.Provider)
	}
}

func TestBuildProviders_Errors(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterVAD("webrtc", func(config.ProviderEntry) (vad.Engine, error) { return nil, webrtc.ErrUnavailable })
	reg.RegisterSTT("broken", func(config.ProviderEntry) (stt.Provider, error) { return nil, boom })

	tests := []struct {
		name string
		cfg  config.Config
		want error
	}{
		{
			name: "unregistered stt",
			cfg:  config.Config{Providers: config.ProvidersConfig{STT: []config.ProviderEntry{{Name: "nope"}}}},
			want: config.ErrProviderNotRegistered,
		},
		{
			name: "factory error",
			cfg:  config.Config{Providers: config.ProvidersConfig{STT: []config.ProviderEntry{{Name: "broken"}}}},
			want: boom,
		},
		{
			name: "explicit webrtc is not replaced",
			cfg:  config.Config{Providers: config.ProvidersConfig{VAD: config.ProviderEntry{Name: "webrtc"}}},
			want: webrtc.ErrUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			if _, err := buildProviders(&cfg, reg, noopMetrics(t), discardLogger()); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestChainVoice(t *testing.T) {
	t.Parallel()

	v := config.VoiceConfig{Provider: "elevenlabs", VoiceID: "rachel"}
	if got := chainVoice(v, config.ProviderEntry{Name: "elevenlabs"}); got.ID != "rachel" {
		t.Errorf("own backend voice = %+v", got)
	}
	entry := config.ProviderEntry{Name: "coqui", Options: map[string]any{"voice_id": "p225"}}
	if got := chainVoice(v, entry); got.ID != "p225" || got.Provider != "coqui" {
		t.Errorf("fallback voice = %+v", got)
	}
	if got := chainVoice(v, config.ProviderEntry{Name: "coqui"}); got.ID != "" {
		t.Errorf("no voice_id option = %+v, want zero", got)
	}
}

func TestProviderTimeout(t *testing.T) {
	t.Parallel()

	if got := providerTimeout(config.ProviderEntry{}); got != defaultProviderTimeout {
		t.Errorf("default = %v", got)
	}
	entry := config.ProviderEntry{Options: map[string]any{"timeout_seconds": 30}}
	if got := providerTimeout(entry); got != 30*time.Second {
		t.Errorf("override = %v", got)
	}
}

func TestBuiltinProviderNames(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	(&providerFactory{log: discardLogger()}).register(reg)
	for kind, names := range config.ValidProviderNames {
		got := reg.Names(kind)
		for _, name := range names {
			found := false
			for _, g := range got {
				found = found || g == name
			}
			if !found {
				t.Errorf("%s provider %q is not registered", kind, name)
			}
		}
	}
}

// ─── rendering ────────────────────────────────────────────────────────────────

func TestParseVoiceMode(t *testing.T) {
	t.Parallel()

	tests := map[string]pipeline.VoiceMode{
		"":        pipeline.VoiceKeep,
		"keep":    pipeline.VoiceKeep,
		"Resynth": pipeline.VoiceResynth,
		"convert": pipeline.VoiceConvert,
	}
	for in, want := range tests {
		got, err := parseVoiceMode(in)
		if err != nil || got != want {
			t.Errorf("parseVoiceMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseVoiceMode("dub"); err == nil {
		t.Error("parseVoiceMode(dub): expected error")
	}
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	if got := renderTable(nil, nil, nil); got != "" {
		t.Errorf("no headers = %q", got)
	}
	out := renderTable([]string{"Name", "Count"}, [][]string{{"alpha", "1"}, {"beta"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"Name", "Count", "alpha", "beta", "╭"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writeReport(&buf, pipeline.Report{
		JobID:          "job-1",
		InputSeconds:   10,
		OutputSeconds:  8.5,
		SegmentsKept:   3,
		SecondsRemoved: 1.5,
		Adjustments:    map[resynth.Action]int{resynth.ActionStretch: 2, resynth.ActionPad: 1},
		Stages:         []pipeline.StageTiming{{Stage: pipeline.StageClean, Duration: 1500 * time.Millisecond}},
		Warnings: []pipeline.Warning{{
			Stage: pipeline.StageResynth,
			Kind:  pipeline.WarnEntrySkipped,
			Err:   errors.New("entry 4: quota"),
		}},
	})
	out := buf.String()
	for _, want := range []string{"job-1", "8.50s", "1.50s", "Entries pad", "Entries stretch", "1.5s", pipeline.WarnEntrySkipped, "entry 4: quota"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Entries pad") > strings.Index(out, "Entries stretch") {
		t.Error("adjustments not sorted")
	}
}
