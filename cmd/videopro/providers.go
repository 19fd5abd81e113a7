package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anujsonawane60/my-video-pro-app/internal/config"
	"github.com/anujsonawane60/my-video-pro-app/internal/observe"
	"github.com/anujsonawane60/my-video-pro-app/internal/pipeline"
	"github.com/anujsonawane60/my-video-pro-app/internal/resilience"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt/assemblyai"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt/deepgram"
	oaistt "github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt/openai"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt/whisper"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts/coqui"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts/elevenlabs"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad/energy"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad/silero"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/vad/webrtc"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// defaultProviderTimeout bounds a single provider HTTP request. Batch
// transcription of a five minute chunk can take a while.
const defaultProviderTimeout = 5 * time.Minute

// providerFactory wires the built-in providers into a registry. Factories
// that acquire native resources record a closer for the pipeline to release
// at shutdown.
type providerFactory struct {
	metrics *observe.Metrics
	log     *slog.Logger
	closers []func() error
}

// providerTimeout returns options.timeout_seconds, or the default.
func providerTimeout(entry config.ProviderEntry) time.Duration {
	if s, ok := config.OptInt(entry.Options, "timeout_seconds"); ok && s > 0 {
		return time.Duration(s) * time.Second
	}
	return defaultProviderTimeout
}

// httpClient returns an instrumented client for one backend.
func (f *providerFactory) httpClient(entry config.ProviderEntry, kind string) *http.Client {
	return observe.HTTPClient(providerTimeout(entry), f.metrics, entry.Name, kind)
}

// register registers every built-in provider with reg.
func (f *providerFactory) register(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []whisper.Option{whisper.WithHTTPClient(f.httpClient(entry, "stt"))}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		size := whisper.ModelSize(entry.Model)
		if size == "" {
			size = whisper.SizeBase
		}
		modelOpts := []whisper.ModelOption{whisper.WithModelLogger(f.log)}
		if config.OptBool(entry.Options, "no_fallback") {
			modelOpts = append(modelOpts, whisper.WithoutFallback())
		}
		h, err := whisper.OpenModel(config.OptString(entry.Options, "model_dir"), size, modelOpts...)
		if err != nil {
			return nil, err
		}
		var opts []whisper.NativeOption
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		p, err := whisper.NewNative(h, opts...)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		f.closers = append(f.closers, h.Close)
		return p, nil
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []oaistt.Option{oaistt.WithTimeout(providerTimeout(entry))}
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		if org := config.OptString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaistt.WithOrganization(org))
		}
		if n, ok := config.OptInt(entry.Options, "max_retries"); ok {
			opts = append(opts, oaistt.WithMaxRetries(n))
		}
		return oaistt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []deepgram.Option{deepgram.WithHTTPClient(f.httpClient(entry, "stt"))}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("assemblyai", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []assemblyai.Option{assemblyai.WithHTTPClient(f.httpClient(entry, "stt"))}
		if entry.BaseURL != "" {
			opts = append(opts, assemblyai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, assemblyai.WithSpeechModel(entry.Model))
		}
		if s, ok := config.OptInt(entry.Options, "poll_interval_ms"); ok && s > 0 {
			opts = append(opts, assemblyai.WithPollInterval(time.Duration(s)*time.Millisecond))
		}
		return assemblyai.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		opts := []elevenlabs.Option{elevenlabs.WithHTTPClient(f.httpClient(entry, "tts"))}
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if m := config.OptString(entry.Options, "sts_model"); m != "" {
			opts = append(opts, elevenlabs.WithSTSModel(m))
		}
		if outputFmt := config.OptString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		stability, okS := config.OptFloat(entry.Options, "stability")
		similarity, okSim := config.OptFloat(entry.Options, "similarity_boost")
		if okS || okSim {
			if !okS {
				stability = 0.5
			}
			if !okSim {
				similarity = 0.75
			}
			opts = append(opts, elevenlabs.WithVoiceSettings(stability, similarity))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL, config.OptString(entry.Options, "ws_url")))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		opts := []coqui.Option{coqui.WithTimeout(providerTimeout(entry))}
		if lang := config.OptString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := config.OptString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("webrtc", func(config.ProviderEntry) (vad.Engine, error) {
		e, err := webrtc.New()
		if err != nil {
			return nil, err
		}
		return e, nil
	})

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Engine, error) {
		var opts []energy.Option
		if r, ok := config.OptFloat(entry.Options, "floor_ratio"); ok {
			opts = append(opts, energy.WithFloorRatio(r))
		}
		return energy.New(opts...), nil
	})

	reg.RegisterSegmentDetector("silero", func(entry config.ProviderEntry) (vad.SegmentDetector, error) {
		cfg := silero.Config{ModelPath: entry.Model}
		if cfg.ModelPath == "" {
			cfg.ModelPath = config.OptString(entry.Options, "model_path")
		}
		if v, ok := config.OptFloat(entry.Options, "threshold"); ok {
			cfg.Threshold = v
		}
		if v, ok := config.OptInt(entry.Options, "min_silence_ms"); ok {
			cfg.MinSilenceMs = v
		}
		if v, ok := config.OptInt(entry.Options, "speech_pad_ms"); ok {
			cfg.SpeechPadMs = v
		}
		d, err := silero.New(cfg)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, d.Close)
		return d, nil
	})

	for _, kind := range []string{"stt", "tts", "vad", "segments"} {
		f.log.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in a [pipeline.Providers] struct. STT and TTS chains with
// more than one entry are wrapped in circuit-breaking fallbacks.
//
// An unset voice.provider is resolved to the first TTS entry.
func buildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics, log *slog.Logger) (*pipeline.Providers, error) {
	ps := &pipeline.Providers{}
	if cfg.Voice.Provider == "" && len(cfg.Providers.TTS) > 0 {
		cfg.Voice.Provider = cfg.Providers.TTS[0].Name
	}
	fbCfg := fallbackConfig(cfg.Providers.CircuitBreaker, m, log)

	if chain := cfg.Providers.STT; len(chain) > 0 {
		var group *resilience.STTFallback
		for _, entry := range chain {
			p, err := reg.CreateSTT(entry)
			if err != nil {
				return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
			}
			log.Info("provider created", "kind", "stt", "name", entry.Name)
			if group == nil {
				group = resilience.NewSTTFallback(p, entry.Name, fbCfg)
				ps.STT = p
				continue
			}
			group.AddFallback(entry.Name, p)
			ps.STT = group
		}
	}

	if chain := cfg.Providers.TTS; len(chain) > 0 {
		var group *resilience.TTSFallback
		for _, entry := range chain {
			p, err := reg.CreateTTS(entry)
			if err != nil {
				return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
			}
			log.Info("provider created", "kind", "tts", "name", entry.Name)
			voice := chainVoice(cfg.Voice, entry)
			if group == nil {
				group = resilience.NewTTSFallback(p, entry.Name, voice, fbCfg)
				ps.TTS = p
				continue
			}
			group.AddFallback(entry.Name, p, voice)
			ps.TTS = group
		}
	}

	vadEntry := cfg.Providers.VAD
	if vadEntry.Name == "" {
		vadEntry.Name = "webrtc"
	}
	engine, err := reg.CreateVAD(vadEntry)
	if errors.Is(err, webrtc.ErrUnavailable) && cfg.Providers.VAD.Name == "" {
		log.Warn("webrtc vad unavailable, using energy classifier")
		vadEntry = config.ProviderEntry{Name: "energy"}
		engine, err = reg.CreateVAD(vadEntry)
	}
	if err != nil {
		return nil, fmt.Errorf("create vad provider %q: %w", vadEntry.Name, err)
	}
	ps.VAD = engine
	log.Info("provider created", "kind", "vad", "name", vadEntry.Name)

	if name := cfg.Providers.Segments.Name; name != "" {
		d, err := reg.CreateSegmentDetector(cfg.Providers.Segments)
		if err != nil {
			return nil, fmt.Errorf("create segment detector %q: %w", name, err)
		}
		ps.Segments = d
		log.Info("provider created", "kind", "segments", "name", name)
	}

	return ps, nil
}

// chainVoice returns the voice to use on one TTS backend: the configured
// voice when it belongs to that backend, otherwise options.voice_id.
func chainVoice(v config.VoiceConfig, entry config.ProviderEntry) types.VoiceProfile {
	if v.Provider == entry.Name && v.VoiceID != "" {
		return v.Profile()
	}
	if id := config.OptString(entry.Options, "voice_id"); id != "" {
		return types.VoiceProfile{ID: id, Provider: entry.Name}
	}
	return types.VoiceProfile{}
}

func fallbackConfig(cb config.BreakerConfig, m *observe.Metrics, log *slog.Logger) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cb.MaxFailures,
			ResetTimeout: cb.ResetTimeout,
			HalfOpenMax:  cb.HalfOpenMax,
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn("circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
		OnFailover: func(from string, err error) {
			log.Warn("provider failed, trying next", "provider", from, "err", err)
		},
	}
}
