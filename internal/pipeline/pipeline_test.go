package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/anujsonawane60/my-video-pro-app/internal/config"
	"github.com/anujsonawane60/my-video-pro-app/internal/media"
	"github.com/anujsonawane60/my-video-pro-app/internal/observe"
	"github.com/anujsonawane60/my-video-pro-app/internal/pipeline"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/clean"
	sttmock "github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt/mock"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	ttsmock "github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts/mock"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
	vadmock "github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad/mock"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ─── helpers ──────────────────────────────────────────────────────────────────

func testConfig() *config.Config {
	return &config.Config{
		Cleaning: config.CleaningConfig{SkipNoiseReduction: true},
		Voice:    config.VoiceConfig{Provider: "elevenlabs", VoiceID: "rachel"},
	}
}

// allSpeech returns a VAD engine that classifies every frame as speech.
func allSpeech() *vadmock.Engine {
	return &vadmock.Engine{Session: &vadmock.Session{EventResult: vadEvent(true)}}
}

func vadEvent(speech bool) vad.VADEvent {
	return vad.VADEvent{Speech: speech}
}

// scriptFlags turns "..SS." into per-frame speech flags.
func scriptFlags(s string) []bool {
	out := make([]bool, len(s))
	for i, c := range s {
		out[i] = c == 'S'
	}
	return out
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counter returns the value of the named counter's data point matching kv,
// or 0 when there is none.
func counter(t *testing.T, reader *sdkmetric.ManualReader, name string, kv attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(kv.Key); ok && v == kv.Value {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func newPipeline(t *testing.T, cfg *config.Config, providers *pipeline.Providers, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	m, _ := newTestMetrics(t)
	opts = append([]pipeline.Option{
		pipeline.WithMetrics(m),
		pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		pipeline.WithMedia(&fakeMedia{}),
	}, opts...)
	p, err := pipeline.New(cfg, providers, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func hasWarning(r pipeline.Report, stage, kind string) bool {
	for _, w := range r.Warnings {
		if w.Stage == stage && w.Kind == kind {
			return true
		}
	}
	return false
}

// fakeMedia serves a fixed buffer and records mux requests.
type fakeMedia struct {
	mu         sync.Mutex
	audio      audio.Buffer
	extractErr error
	muxErr     error
	muxed      []media.MuxRequest
}

func (m *fakeMedia) ExtractAudio(context.Context, string) (audio.Buffer, error) {
	return m.audio, m.extractErr
}

func (m *fakeMedia) Mux(_ context.Context, req media.MuxRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muxed = append(m.muxed, req)
	return m.muxErr
}

// ─── New / Shutdown ───────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := pipeline.New(nil, nil); err == nil {
		t.Error("nil providers: expected error")
	}

	bad := 2.0
	cfg := &config.Config{Cleaning: config.CleaningConfig{NoiseSensitivity: &bad}}
	if _, err := pipeline.New(cfg, &pipeline.Providers{}); !errors.Is(err, clean.ErrInvalidParams) {
		t.Errorf("invalid cleaning: err = %v", err)
	}

	if _, err := pipeline.New(nil, &pipeline.Providers{}, pipeline.WithMedia(&fakeMedia{})); err != nil {
		t.Errorf("nil config: %v", err)
	}
}

func TestShutdown_RunsClosersOnce(t *testing.T) {
	t.Parallel()

	var calls []int
	boom := errors.New("close failed")
	p := newPipeline(t, testConfig(), &pipeline.Providers{},
		pipeline.WithCloser(func() error { calls = append(calls, 1); return boom }),
		pipeline.WithCloser(func() error { calls = append(calls, 2); return nil }),
	)
	if err := p.Shutdown(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Shutdown err = %v, want %v", err, boom)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown = %v, want nil", err)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("closer calls = %v, want [1 2]", calls)
	}
}

func TestShutdown_DeadlineStopsClosers(t *testing.T) {
	t.Parallel()

	called := false
	p := newPipeline(t, testConfig(), &pipeline.Providers{},
		pipeline.WithCloser(func() error { called = true; return nil }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if called {
		t.Error("closer ran after the deadline")
	}
}

// ─── Detect / Clean ───────────────────────────────────────────────────────────

func TestDetect(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	sess := &vadmock.Session{Script: scriptFlags("..SSSSSSSSSS.........................")}
	p := newPipeline(t, testConfig(), &pipeline.Providers{VAD: &vadmock.Engine{Session: sess}}, pipeline.WithMetrics(m))

	res, err := p.Detect(context.Background(), audio.SilenceMs(audio.VADFormat, 1200))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if res.Report.JobID == "" {
		t.Error("missing job id")
	}
	if len(res.Detection.Segments) != 1 || res.Report.SegmentsKept != 1 {
		t.Fatalf("segments = %v, report %+v", res.Detection.Segments, res.Report)
	}
	if res.Report.SpeechSeconds <= 0 || res.Report.SpeechSeconds > res.Report.InputSeconds {
		t.Errorf("SpeechSeconds = %v", res.Report.SpeechSeconds)
	}
	if got := counter(t, reader, "videopro.vad.frames", attribute.Bool("speech", true)); got != 10 {
		t.Errorf("speech frames = %d, want 10", got)
	}
	if len(res.Report.Stages) != 1 || res.Report.Stages[0].Stage != pipeline.StageClean {
		t.Errorf("stages = %+v", res.Report.Stages)
	}
}

func TestDetect_NoEngine(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, testConfig(), &pipeline.Providers{})
	_, err := p.Detect(context.Background(), audio.SilenceMs(audio.VADFormat, 300))
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Stage != pipeline.StageClean {
		t.Errorf("err = %v, want StageError(clean)", err)
	}
}

func TestClean_DropsFillersAndSilence(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Cleaning.RemoveFillers = true
	p := newPipeline(t, cfg, &pipeline.Providers{VAD: allSpeech()})

	words := []types.Word{
		{Text: "um", Start: 0, End: 0.25},
		{Text: "hello", Start: 0.25, End: 1},
	}
	res, err := p.Clean(context.Background(), pipeline.CleanRequest{
		Audio: audio.SilenceMs(audio.VADFormat, 1000),
		Words: words,
		Mode:  clean.ModeDrop,
	})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(res.Fillers) != 1 || res.Report.FillersRemoved != 1 {
		t.Fatalf("fillers = %v", res.Fillers)
	}
	if got := res.Audio.Frames(); got != 12000 {
		t.Errorf("cleaned frames = %d, want 12000", got)
	}
	if res.Report.SecondsRemoved < 0.25 || res.Report.SecondsRemoved > 0.26 {
		t.Errorf("SecondsRemoved = %v, want 0.25", res.Report.SecondsRemoved)
	}
}

func TestClean_MaskMutesFillersInPlace(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Cleaning.RemoveFillers = true
	p := newPipeline(t, cfg, &pipeline.Providers{VAD: allSpeech()})

	res, err := p.Clean(context.Background(), pipeline.CleanRequest{
		Audio: audio.SilenceMs(audio.VADFormat, 1000),
		Words: []types.Word{{Text: "uhh", Start: 0.5, End: 0.75}},
	})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if got := res.Audio.Frames(); got != 16000 {
		t.Errorf("mask mode changed the length: %d frames", got)
	}
	if res.Report.FillersRemoved != 1 {
		t.Errorf("FillersRemoved = %d", res.Report.FillersRemoved)
	}
}

func TestClean_SoftWarnings(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	cfg := testConfig()
	cfg.Cleaning.RemoveFillers = true
	sess := &vadmock.Session{EventResult: vadEvent(true), ErrAt: map[int]error{0: errors.New("bad frame")}}
	p := newPipeline(t, cfg, &pipeline.Providers{VAD: &vadmock.Engine{Session: sess}}, pipeline.WithMetrics(m))

	res, err := p.Clean(context.Background(), pipeline.CleanRequest{Audio: audio.SilenceMs(audio.VADFormat, 600)})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if !hasWarning(res.Report, pipeline.StageFillers, pipeline.WarnNoWordTiming) {
		t.Errorf("missing no-word-timing warning: %+v", res.Report.Warnings)
	}
	if !hasWarning(res.Report, pipeline.StageClean, pipeline.WarnFrameErrors) {
		t.Errorf("missing frame error warning: %+v", res.Report.Warnings)
	}
	if got := counter(t, reader, "videopro.soft_warnings", attribute.String("kind", pipeline.WarnFrameErrors)); got != 1 {
		t.Errorf("soft warning counter = %d, want 1", got)
	}
}

func TestClean_SegmentDetectorFallback(t *testing.T) {
	t.Parallel()

	det := &vadmock.SegmentDetector{Err: errors.New("model missing")}
	p := newPipeline(t, testConfig(), &pipeline.Providers{VAD: allSpeech(), Segments: det})

	res, err := p.Clean(context.Background(), pipeline.CleanRequest{Audio: audio.SilenceMs(audio.VADFormat, 600)})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if !hasWarning(res.Report, pipeline.StageClean, pipeline.WarnSegmentDetector) {
		t.Errorf("warnings = %+v", res.Report.Warnings)
	}
}

func TestClean_EmptyInputIsHard(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, testConfig(), &pipeline.Providers{VAD: allSpeech()})
	_, err := p.Clean(context.Background(), pipeline.CleanRequest{Audio: audio.Buffer{SampleRate: 16000, Channels: 1}})
	if !errors.Is(err, audio.ErrEmptyBuffer) {
		t.Errorf("err = %v, want ErrEmptyBuffer", err)
	}
}

// ─── Transcribe ──────────────────────────────────────────────────────────────

func TestTranscribe(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Cleaning.RemoveFillers = true
	cfg.Transcription.Language = "de"
	stt := &sttmock.Provider{Result: types.Transcript{
		Entries: []types.SubtitleEntry{{Index: 1, Start: 0, End: 1, Text: "hallo"}},
	}}
	p := newPipeline(t, cfg, &pipeline.Providers{STT: stt})

	res, err := p.Transcribe(context.Background(), audio.SilenceMs(audio.VADFormat, 1000))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Report.Entries != 1 || res.Transcript.Entries[0].Text != "hallo" {
		t.Errorf("result = %+v", res)
	}
	got := stt.Calls[0].Cfg
	if got.Language != "de" || !got.WordTimestamps {
		t.Errorf("stt config = %+v, want de with word timing", got)
	}
}

func TestTranscribe_NotConfigured(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, testConfig(), &pipeline.Providers{})
	_, err := p.Transcribe(context.Background(), audio.SilenceMs(audio.VADFormat, 100))
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Stage != pipeline.StageTranscribe || !errors.Is(err, pipeline.ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
}

// ─── Resynthesize / ConvertVoice ─────────────────────────────────────────────

func TestResynthesize(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	provider := &ttsmock.Provider{
		Clip:        audio.SilenceMs(audio.VADFormat, 1000),
		Errs:        map[string]error{"broken": errors.New("voice unavailable")},
		QuotaResult: tts.Quota{CharacterLimit: 1000},
	}
	p := newPipeline(t, testConfig(), &pipeline.Providers{TTS: provider}, pipeline.WithMetrics(m))

	entries := []types.SubtitleEntry{
		{Index: 1, Start: 0, End: 1, Text: "hello"},
		{Index: 2, Start: 1, End: 2, Text: "broken"},
	}
	res, err := p.Resynthesize(context.Background(), entries, types.VoiceProfile{})
	if err != nil {
		t.Fatalf("Resynthesize: %v", err)
	}
	if res.Audio.DurationMs() != 2000 {
		t.Errorf("timeline = %d ms, want 2000", res.Audio.DurationMs())
	}
	if res.Report.Adjustments["unchanged"] != 1 || len(res.Report.Skipped) != 1 || res.Report.Skipped[0].Index != 2 {
		t.Errorf("report = %+v", res.Report)
	}
	if !hasWarning(res.Report, pipeline.StageResynth, pipeline.WarnEntrySkipped) {
		t.Errorf("warnings = %+v", res.Report.Warnings)
	}
	for _, c := range provider.SynthesizeCalls {
		if c.Voice.ID != "rachel" {
			t.Errorf("voice = %+v, want configured voice", c.Voice)
		}
	}
	if got := counter(t, reader, "videopro.resynth.entries", attribute.String("action", "skipped")); got != 1 {
		t.Errorf("skipped counter = %d", got)
	}
}

func TestResynthesize_InsufficientCredits(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{QuotaResult: tts.Quota{CharacterLimit: 3}}
	p := newPipeline(t, testConfig(), &pipeline.Providers{TTS: provider})
	_, err := p.Resynthesize(context.Background(),
		[]types.SubtitleEntry{{Index: 1, Start: 0, End: 1, Text: "too long"}},
		types.VoiceProfile{ID: "v"})
	if !errors.Is(err, tts.ErrInsufficientCredits) {
		t.Errorf("err = %v, want ErrInsufficientCredits", err)
	}
	if len(provider.SynthesizeCalls) != 0 {
		t.Error("synthesized despite insufficient credits")
	}
}

func TestConvertVoice(t *testing.T) {
	t.Parallel()

	provider := &ttsmock.Provider{ConvertResult: audio.SilenceMs(audio.Format{SampleRate: 44100, Channels: 1}, 900)}
	p := newPipeline(t, testConfig(), &pipeline.Providers{TTS: provider})

	speech := audio.SilenceMs(audio.VADFormat, 1000)
	res, err := p.ConvertVoice(context.Background(), speech, types.VoiceProfile{ID: "other"})
	if err != nil {
		t.Fatalf("ConvertVoice: %v", err)
	}
	if res.Audio.Format() != audio.VADFormat || res.Audio.Frames() != speech.Frames() {
		t.Errorf("converted = %s / %d frames, want aligned to input", res.Audio.Format(), res.Audio.Frames())
	}
	if provider.ConvertVoiceCalls[0].Voice.ID != "other" {
		t.Errorf("voice = %+v", provider.ConvertVoiceCalls[0].Voice)
	}

	basic := newPipeline(t, testConfig(), &pipeline.Providers{TTS: &ttsmock.Basic{}})
	if _, err := basic.ConvertVoice(context.Background(), speech, types.VoiceProfile{}); !errors.Is(err, pipeline.ErrNotConfigured) {
		t.Errorf("non-converter: err = %v", err)
	}
}

// ─── Process ─────────────────────────────────────────────────────────────────

func TestProcess_FullRun(t *testing.T) {
	t.Parallel()

	fm := &fakeMedia{audio: audio.SilenceMs(audio.VADFormat, 2000)}
	stt := &sttmock.Provider{Result: types.Transcript{
		Entries: []types.SubtitleEntry{{Index: 1, Start: 0.5, End: 1.5, Text: "hello there"}},
		Words:   []types.Word{{Text: "hello", Start: 0.5, End: 1}, {Text: "there", Start: 1, End: 1.5}},
	}}
	provider := &ttsmock.Provider{Clip: audio.SilenceMs(audio.VADFormat, 1000), QuotaResult: tts.Quota{CharacterLimit: 100}}
	cfg := testConfig()
	cfg.Cleaning.Mode = "drop"
	cfg.Media.BurnSubtitles = true
	cfg.Media.SubtitleStyle = media.SubtitleStyle{FontName: "Arial", FontSize: 30}
	p := newPipeline(t, cfg, &pipeline.Providers{STT: stt, TTS: provider, VAD: allSpeech()}, pipeline.WithMedia(fm))

	res, err := p.Process(context.Background(), pipeline.ProcessRequest{
		Video:  "in.mp4",
		Output: "out.mp4",
		Voice:  pipeline.VoiceResynth,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(fm.muxed) != 1 {
		t.Fatalf("mux calls = %d", len(fm.muxed))
	}
	req := fm.muxed[0]
	if req.Video != "in.mp4" || req.Output != "out.mp4" || !req.BurnSubtitles {
		t.Errorf("mux request = %+v", req)
	}
	if req.Style.FontName != "Arial" || req.Style.FontSize != 30 {
		t.Errorf("subtitle style = %+v", req.Style)
	}
	// Video jobs keep the audio aligned with the picture.
	if req.Audio.Frames() != fm.audio.Frames() {
		t.Errorf("muxed audio = %d frames, want %d", req.Audio.Frames(), fm.audio.Frames())
	}
	if len(req.Subtitles) != 1 || len(res.Subtitles) != 1 {
		t.Errorf("subtitles = %v", req.Subtitles)
	}
	wantStages := []string{pipeline.StageExtract, pipeline.StageTranscribe, pipeline.StageClean, pipeline.StageResynth, pipeline.StageMux}
	if len(res.Report.Stages) != len(wantStages) {
		t.Fatalf("stages = %+v", res.Report.Stages)
	}
	for i, s := range wantStages {
		if res.Report.Stages[i].Stage != s {
			t.Errorf("stage %d = %q, want %q", i, res.Report.Stages[i].Stage, s)
		}
	}
	if len(res.Report.Warnings) != 0 {
		t.Errorf("warnings = %+v", res.Report.Warnings)
	}
}

func TestProcess_TranscriptionFailureIsSoft(t *testing.T) {
	t.Parallel()

	fm := &fakeMedia{audio: audio.SilenceMs(audio.VADFormat, 1000)}
	stt := &sttmock.Provider{Err: errors.New("server down")}
	p := newPipeline(t, testConfig(), &pipeline.Providers{STT: stt, TTS: &ttsmock.Provider{}, VAD: allSpeech()}, pipeline.WithMedia(fm))

	res, err := p.Process(context.Background(), pipeline.ProcessRequest{
		Video:  "in.mp4",
		Output: "out.mp4",
		Voice:  pipeline.VoiceResynth,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !hasWarning(res.Report, pipeline.StageTranscribe, pipeline.WarnTranscription) {
		t.Errorf("missing transcription warning: %+v", res.Report.Warnings)
	}
	if !hasWarning(res.Report, pipeline.StageResynth, pipeline.WarnNoSubtitles) {
		t.Errorf("missing no-subtitles warning: %+v", res.Report.Warnings)
	}
	if len(fm.muxed) != 1 || len(fm.muxed[0].Subtitles) != 0 {
		t.Errorf("mux = %+v", fm.muxed)
	}
}

func TestProcess_SuppliedSubtitlesSkipTranscription(t *testing.T) {
	t.Parallel()

	fm := &fakeMedia{audio: audio.SilenceMs(audio.VADFormat, 1000)}
	stt := &sttmock.Provider{}
	p := newPipeline(t, testConfig(), &pipeline.Providers{STT: stt, VAD: allSpeech()}, pipeline.WithMedia(fm))

	subs := []types.SubtitleEntry{{Index: 1, Start: 0, End: 1, Text: "given"}}
	res, err := p.Process(context.Background(), pipeline.ProcessRequest{Video: "in.mp4", Output: "out.mp4", Subtitles: subs, NoSubtitles: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stt.CallCount() != 0 {
		t.Error("transcribed despite supplied subtitles")
	}
	if res.Report.Entries != 1 || len(fm.muxed[0].Subtitles) != 0 {
		t.Errorf("entries = %d, muxed subtitles = %v", res.Report.Entries, fm.muxed[0].Subtitles)
	}
}

func TestProcess_VoiceConversionFailureIsSoft(t *testing.T) {
	t.Parallel()

	fm := &fakeMedia{audio: audio.SilenceMs(audio.VADFormat, 1000)}
	p := newPipeline(t, testConfig(), &pipeline.Providers{TTS: &ttsmock.Basic{}, VAD: allSpeech()}, pipeline.WithMedia(fm))

	res, err := p.Process(context.Background(), pipeline.ProcessRequest{Video: "in.mp4", Output: "out.mp4", Voice: pipeline.VoiceConvert})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !hasWarning(res.Report, pipeline.StageVoice, pipeline.WarnVoiceUnsupported) {
		t.Errorf("warnings = %+v", res.Report.Warnings)
	}
	if fm.muxed[0].Audio.Frames() != 16000 {
		t.Errorf("muxed audio = %d frames", fm.muxed[0].Audio.Frames())
	}
}

func TestProcess_HardFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		media *fakeMedia
		req   pipeline.ProcessRequest
		stage string
		want  error
	}{
		{
			name:  "invalid request",
			media: &fakeMedia{},
			req:   pipeline.ProcessRequest{Voice: "shout"},
			want:  pipeline.ErrInvalidRequest,
		},
		{
			name:  "extract",
			media: &fakeMedia{extractErr: media.ErrNoInput},
			req:   pipeline.ProcessRequest{Video: "in.mp4", Output: "out.mp4"},
			stage: pipeline.StageExtract,
			want:  media.ErrNoInput,
		},
		{
			name:  "mux",
			media: &fakeMedia{audio: audio.SilenceMs(audio.VADFormat, 500), muxErr: io.ErrUnexpectedEOF},
			req:   pipeline.ProcessRequest{Video: "in.mp4", Output: "out.mp4"},
			stage: pipeline.StageMux,
			want:  io.ErrUnexpectedEOF,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := newPipeline(t, testConfig(), &pipeline.Providers{VAD: allSpeech()}, pipeline.WithMedia(tt.media))
			_, err := p.Process(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.stage == "" {
				return
			}
			var se *pipeline.StageError
			if !errors.As(err, &se) || se.Stage != tt.stage {
				t.Errorf("err = %v, want StageError(%s)", err, tt.stage)
			}
		})
	}
}

func TestStageError(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := error(&pipeline.StageError{Stage: pipeline.StageMux, Err: inner})
	if err.Error() != "pipeline: mux: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("StageError does not unwrap")
	}
	w := pipeline.Warning{Stage: pipeline.StageClean, Kind: pipeline.WarnOther, Err: inner}
	if w.Error() != "clean: boom" || !errors.Is(w, inner) {
		t.Errorf("Warning = %q", w.Error())
	}
}

func TestLoadAudio(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "in.wav")
	want := audio.SilenceMs(audio.VADFormat, 250)
	if err := audio.WriteWAVFile(path, want); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	extracted := audio.SilenceMs(audio.VADFormat, 700)
	p := newPipeline(t, testConfig(), &pipeline.Providers{}, pipeline.WithMedia(&fakeMedia{audio: extracted}))

	got, err := p.LoadAudio(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadAudio(wav): %v", err)
	}
	if got.Frames() != want.Frames() {
		t.Errorf("wav frames = %d, want %d", got.Frames(), want.Frames())
	}

	got, err = p.LoadAudio(context.Background(), "clip.MKV")
	if err != nil {
		t.Fatalf("LoadAudio(video): %v", err)
	}
	if got.Frames() != extracted.Frames() {
		t.Errorf("video frames = %d, want %d", got.Frames(), extracted.Frames())
	}
}
