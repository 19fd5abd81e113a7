// Package config provides the configuration schema, loader, and provider
// registry for videopro.
package config

import (
	"time"

	"github.com/anujsonawane60/my-video-pro-app/internal/media"
	"github.com/anujsonawane60/my-video-pro-app/pkg/clean"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/resynth"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
// The zero value is usable: every section falls back to its defaults.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Cleaning      CleaningConfig      `yaml:"cleaning"`
	Resynth       ResynthConfig       `yaml:"resynth"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Voice         VoiceConfig         `yaml:"voice"`
	Media         MediaConfig         `yaml:"media"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr, when set, serves Prometheus metrics on this address while
	// a job runs (e.g., ":9464").
	MetricsAddr string `yaml:"metrics_addr"`
}

// CleaningConfig mirrors [clean.Params]. Pointer fields distinguish an
// explicit zero from "use the default".
type CleaningConfig struct {
	// NoiseSensitivity is the noise reduction strength in [0, 1]. Default: 0.2.
	NoiseSensitivity *float64 `yaml:"noise_sensitivity"`

	// SkipNoiseReduction disables the noise reduction stage.
	SkipNoiseReduction bool `yaml:"skip_noise_reduction"`

	// Stationary selects stationary noise estimation. Only the stationary
	// reducer exists; false is accepted and ignored with a warning.
	Stationary *bool `yaml:"stationary"`

	// VADAggressiveness is the frame classifier mode in [0, 3]. Default: 1.
	VADAggressiveness *int `yaml:"vad_aggressiveness"`

	// FrameMs is the VAD frame length: 10, 20 or 30. Default: 30.
	FrameMs int `yaml:"frame_ms"`

	// Hysteresis settings, in frames. Defaults: 3 / 5 / 2.
	MinSpeechFrames  int  `yaml:"min_speech_frames"`
	MinSilenceFrames int  `yaml:"min_silence_frames"`
	PaddingFrames    *int `yaml:"padding_frames"`

	// Mode is "mask" (mute non-speech) or "drop" (cut it out). Default: mask.
	Mode string `yaml:"mode"`

	// RemoveFillers cuts filler words found in the transcript's word timing.
	RemoveFillers bool `yaml:"remove_fillers"`

	// Fillers overrides the filler vocabulary.
	Fillers []string `yaml:"fillers"`
}

// Params converts the section to cleaning parameters, applying defaults.
func (c CleaningConfig) Params() clean.Params {
	p := clean.DefaultParams()
	if c.NoiseSensitivity != nil {
		p.NoiseSensitivity = *c.NoiseSensitivity
	}
	p.SkipNoiseReduction = c.SkipNoiseReduction
	if c.VADAggressiveness != nil {
		p.VADAggressiveness = *c.VADAggressiveness
	}
	if c.FrameMs != 0 {
		p.Detector.FrameMs = c.FrameMs
	}
	if c.MinSpeechFrames != 0 {
		p.Detector.MinSpeechFrames = c.MinSpeechFrames
	}
	if c.MinSilenceFrames != 0 {
		p.Detector.MinSilenceFrames = c.MinSilenceFrames
	}
	if c.PaddingFrames != nil {
		p.Detector.PaddingFrames = *c.PaddingFrames
	}
	if c.Mode != "" {
		p.Mode = clean.Mode(c.Mode)
	}
	return p
}

// ResynthConfig mirrors [resynth.Options] plus the worker settings.
type ResynthConfig struct {
	// ToleranceMs is the duration mismatch left alone. Default: 50.
	ToleranceMs *int `yaml:"tolerance_ms"`

	// MaxSpeedFactor caps the speed-up of long clips. Default: 1.5.
	MaxSpeedFactor float64 `yaml:"max_speed_factor"`

	// Stretch is "phase_vocoder", "ola" or "resample". Default: phase_vocoder.
	Stretch string `yaml:"stretch"`

	// TrimOverflow cuts clips still too long after the capped stretch.
	TrimOverflow bool `yaml:"trim_overflow"`

	// Concurrency bounds parallel TTS requests. Default: 4.
	Concurrency int `yaml:"concurrency"`

	// SampleRate of the assembled timeline. Default: 16000.
	SampleRate int `yaml:"sample_rate"`
}

// Options converts the section to reconciliation options, applying defaults.
func (c ResynthConfig) Options() resynth.Options {
	o := resynth.DefaultOptions()
	if c.ToleranceMs != nil {
		o.ToleranceMs = *c.ToleranceMs
	}
	if c.MaxSpeedFactor != 0 {
		o.MaxSpeedFactor = c.MaxSpeedFactor
	}
	if c.Stretch != "" {
		o.Stretch = resynth.StretchMethod(c.Stretch)
	}
	o.TrimOverflow = c.TrimOverflow
	return o
}

// TranscriptionConfig holds per-request transcription settings.
type TranscriptionConfig struct {
	// Language is an ISO-639-1 code. Empty lets the backend detect it.
	Language string `yaml:"language"`

	// WordTimestamps requests word timing. Forced on when
	// cleaning.remove_fillers is set.
	WordTimestamps bool `yaml:"word_timestamps"`

	// Prompt is a context hint for backends that accept one.
	Prompt string `yaml:"prompt"`

	// ChunkSeconds splits long recordings. Default: 300.
	ChunkSeconds int `yaml:"chunk_seconds"`

	// Concurrency bounds parallel chunk requests. Default: 2.
	Concurrency int `yaml:"concurrency"`
}

// STTConfig returns the provider request settings. needWords forces word
// timing on.
func (c TranscriptionConfig) STTConfig(needWords bool) stt.Config {
	return stt.Config{
		Language:       c.Language,
		WordTimestamps: c.WordTimestamps || needWords,
		Prompt:         c.Prompt,
	}
}

// ChunkOptions returns the chunking settings; zero fields take defaults.
func (c TranscriptionConfig) ChunkOptions() stt.ChunkOptions {
	return stt.ChunkOptions{ChunkSeconds: c.ChunkSeconds, Concurrency: c.Concurrency}
}

// ProvidersConfig declares the backends for each external service. STT and
// TTS are ordered failover chains: the first entry is preferred, the rest
// are tried in order when it fails. Each name selects a factory in the
// [Registry].
type ProvidersConfig struct {
	STT []ProviderEntry `yaml:"stt"`
	TTS []ProviderEntry `yaml:"tts"`

	// VAD selects the frame classifier engine. Default: "webrtc".
	VAD ProviderEntry `yaml:"vad"`

	// Segments optionally selects a whole-buffer segment detector (e.g.,
	// "silero") used instead of frame classification.
	Segments ProviderEntry `yaml:"segments"`

	// CircuitBreaker tunes the per-backend breakers of the failover chains.
	CircuitBreaker BreakerConfig `yaml:"circuit_breaker"`
}

// BreakerConfig tunes the circuit breakers. Zero fields take the breaker
// defaults.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint, or addresses a
	// local server. Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "whisper-1", "nova-3").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// VoiceConfig selects the synthesis voice.
type VoiceConfig struct {
	// Provider is the TTS backend the voice belongs to. Default: the first
	// providers.tts entry.
	Provider string `yaml:"provider"`

	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// Name is a display label.
	Name string `yaml:"name"`
}

// Profile returns the voice as a [types.VoiceProfile].
func (v VoiceConfig) Profile() types.VoiceProfile {
	return types.VoiceProfile{ID: v.VoiceID, Name: v.Name, Provider: v.Provider}
}

// MediaConfig locates the ffmpeg tools.
type MediaConfig struct {
	// FFmpegPath defaults to "ffmpeg" on $PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`

	// BurnSubtitles renders the SRT into the picture instead of adding a
	// subtitle stream.
	BurnSubtitles bool `yaml:"burn_subtitles"`

	// SubtitleStyle sets the font and colour of burned subtitles.
	SubtitleStyle media.SubtitleStyle `yaml:"subtitle_style"`

	// WorkDir holds intermediate files. Default: the OS temp dir.
	WorkDir string `yaml:"work_dir"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	// ServiceName is reported in telemetry. Default: "videopro".
	ServiceName string `yaml:"service_name"`

	// Disabled turns metric and trace collection off.
	Disabled bool `yaml:"disabled"`

	// Attributes are added to the telemetry resource, e.g.
	// deployment.environment: staging.
	Attributes map[string]string `yaml:"attributes"`

	// TraceSampleRatio is the fraction of jobs whose spans are sampled, in
	// [0, 1]. Default: 1.
	TraceSampleRatio *float64 `yaml:"trace_sample_ratio"`
}
