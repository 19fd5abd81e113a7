package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":      {"whisper", "whisper-native", "openai", "deepgram", "assemblyai"},
	"tts":      {"elevenlabs", "coqui"},
	"vad":      {"webrtc", "energy"},
	"segments": {"silero"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// An empty document yields the zero [Config].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if err := cfg.Cleaning.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cleaning: %w", err))
	}
	if s := cfg.Cleaning.Stationary; s != nil && !*s {
		slog.Warn("cleaning.stationary: false is ignored; only stationary noise reduction is available")
	}

	if err := cfg.Resynth.Options().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("resynth: %w", err))
	}
	if cfg.Resynth.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("resynth.concurrency %d must not be negative", cfg.Resynth.Concurrency))
	}
	if cfg.Resynth.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("resynth.sample_rate %d must not be negative", cfg.Resynth.SampleRate))
	}

	if cfg.Transcription.ChunkSeconds < 0 {
		errs = append(errs, fmt.Errorf("transcription.chunk_seconds %d must not be negative", cfg.Transcription.ChunkSeconds))
	}

	if err := cfg.Media.SubtitleStyle.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("media.subtitle_style: %w", err))
	}

	if r := cfg.Telemetry.TraceSampleRatio; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %g must be within [0, 1]", *r))
	}

	errs = append(errs, validateChain("stt", cfg.Providers.STT)...)
	errs = append(errs, validateChain("tts", cfg.Providers.TTS)...)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("segments", cfg.Providers.Segments.Name)

	if cb := cfg.Providers.CircuitBreaker; cb.MaxFailures < 0 || cb.ResetTimeout < 0 || cb.HalfOpenMax < 0 {
		errs = append(errs, errors.New("providers.circuit_breaker values must not be negative"))
	}

	// Voice ↔ TTS chain cross-validation
	if v := cfg.Voice; v.Provider != "" && len(cfg.Providers.TTS) > 0 {
		if !slices.ContainsFunc(cfg.Providers.TTS, func(e ProviderEntry) bool { return e.Name == v.Provider }) {
			slog.Warn("voice provider is not part of the TTS chain",
				"voice_provider", v.Provider,
				"tts_primary", cfg.Providers.TTS[0].Name,
			)
		}
	}
	if cfg.Voice.VoiceID == "" && len(cfg.Providers.TTS) > 0 {
		slog.Warn("voice.voice_id is empty; resynthesis will use the backend's default voice")
	}

	return errors.Join(errs...)
}

// validateChain checks one failover chain: every entry needs a name and names
// must be unique, since they key the circuit breakers and metrics.
func validateChain(kind string, chain []ProviderEntry) []error {
	var errs []error
	seen := make(map[string]int, len(chain))
	for i, e := range chain {
		prefix := fmt.Sprintf("providers.%s[%d]", kind, i)
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[e.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.%s[%d]", prefix, e.Name, kind, prev))
		}
		seen[e.Name] = i
		validateProviderName(kind, e.Name)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// OptString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func OptString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// OptInt extracts an integer value from a provider Options map. YAML decodes
// whole numbers as int; floats with no fraction are accepted too.
func OptInt(opts map[string]any, key string) (int, bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// OptFloat extracts a numeric value from a provider Options map.
func OptFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// OptBool extracts a boolean value from a provider Options map.
func OptBool(opts map[string]any, key string) bool {
	b, _ := opts[key].(bool)
	return b
}
