package resilience

import (
	"context"
	"errors"
	"math"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ErrNoVoiceConverter is returned by [TTSFallback.ConvertVoice] when none of
// the registered backends supports voice conversion.
var ErrNoVoiceConverter = errors.New("no backend supports voice conversion")

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
//
// Voice IDs are backend-specific. When a request falls through to a backend
// other than the one named in [types.VoiceProfile.Provider], the voice
// registered for that backend is used instead.
type TTSFallback struct {
	group      *FallbackGroup[tts.Provider]
	converters *FallbackGroup[tts.VoiceConverter]
	cfg        FallbackConfig
	voices     map[string]types.VoiceProfile
}

// Compile-time interface assertions.
var (
	_ tts.Provider       = (*TTSFallback)(nil)
	_ tts.VoiceConverter = (*TTSFallback)(nil)
	_ tts.QuotaChecker   = (*TTSFallback)(nil)
)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
// voice is the primary's default voice and may be zero.
func NewTTSFallback(primary tts.Provider, primaryName string, voice types.VoiceProfile, cfg FallbackConfig) *TTSFallback {
	f := &TTSFallback{cfg: cfg, voices: make(map[string]types.VoiceProfile)}
	f.group = NewFallbackGroup(primary, primaryName, cfg)
	f.register(primaryName, primary, voice)
	return f
}

// AddFallback registers an additional TTS provider as a fallback together with
// the voice to use on it.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider, voice types.VoiceProfile) {
	f.group.AddFallback(name, provider)
	f.register(name, provider, voice)
}

func (f *TTSFallback) register(name string, p tts.Provider, voice types.VoiceProfile) {
	if voice.ID != "" {
		voice.Provider = name
		f.voices[name] = voice
	}
	vc, ok := p.(tts.VoiceConverter)
	if !ok {
		return
	}
	if f.converters == nil {
		f.converters = NewFallbackGroup(vc, name, f.cfg)
		return
	}
	f.converters.AddFallback(name, vc)
}

// voiceFor returns the voice to send to the backend called name.
func (f *TTSFallback) voiceFor(name string, voice types.VoiceProfile) types.VoiceProfile {
	if voice.Provider == "" || voice.Provider == name {
		return voice
	}
	if v, ok := f.voices[name]; ok {
		return v
	}
	return voice
}

// Names returns the backend names in failover order.
func (f *TTSFallback) Names() []string { return f.group.Names() }

// Synthesize renders text on the first healthy provider.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (audio.Buffer, error) {
	return ExecuteNamed(f.group, func(name string, p tts.Provider) (audio.Buffer, error) {
		return p.Synthesize(ctx, text, f.voiceFor(name, voice))
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]types.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// ConvertVoice re-voices speech on the first healthy backend that supports
// conversion.
func (f *TTSFallback) ConvertVoice(ctx context.Context, speech audio.Buffer, voice types.VoiceProfile) (audio.Buffer, error) {
	if f.converters == nil {
		return audio.Buffer{}, ErrNoVoiceConverter
	}
	return ExecuteNamed(f.converters, func(name string, vc tts.VoiceConverter) (audio.Buffer, error) {
		return vc.ConvertVoice(ctx, speech, f.voiceFor(name, voice))
	})
}

// Quota reports the primary backend's quota. A primary without a metered quota
// reports an unlimited one.
func (f *TTSFallback) Quota(ctx context.Context) (tts.Quota, error) {
	qc, ok := f.group.Primary().(tts.QuotaChecker)
	if !ok {
		return tts.Quota{CharacterLimit: math.MaxInt}, nil
	}
	return qc.Quota(ctx)
}
