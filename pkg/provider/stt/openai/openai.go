// Package openai provides an STT provider backed by the OpenAI audio
// transcription API.
package openai

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// maxUploadBytes is the API's per-request file limit.
const maxUploadBytes = 25 << 20

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

var _ stt.Provider = (*Provider)(nil)

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	maxRetries   int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) { c.organization = org }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxRetries sets how often the client retries failed requests.
// Default: 2.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// New constructs a Provider. An empty model selects whisper-1, the only
// model that returns segment and word timing.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	cfg := &config{maxRetries: 2}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cmp.Or(model, oai.AudioModelWhisper1),
	}, nil
}

// Transcribe uploads buf as 16 kHz mono WAV and requests verbose JSON with
// segment timing, plus word timing when cfg.WordTimestamps is set. Buffers
// that exceed the upload limit should go through stt.TranscribeChunked.
func (p *Provider) Transcribe(ctx context.Context, buf audio.Buffer, cfg stt.Config) (types.Transcript, error) {
	wav, err := audio.EncodeWAV(audio.Normalize(buf, audio.VADFormat))
	if err != nil {
		return types.Transcript{}, fmt.Errorf("openai: encode wav: %w", err)
	}
	if len(wav) > maxUploadBytes {
		return types.Transcript{}, fmt.Errorf("openai: upload of %d bytes exceeds the %d byte limit", len(wav), maxUploadBytes)
	}

	granularities := []string{"segment"}
	if cfg.WordTimestamps {
		granularities = append(granularities, "word")
	}
	params := oai.AudioTranscriptionNewParams{
		File:                   oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model:                  p.model,
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: granularities,
		Temperature:            oai.Float(0),
	}
	if cfg.Language != "" {
		params.Language = oai.String(cfg.Language)
	}
	if cfg.Prompt != "" {
		params.Prompt = oai.String(cfg.Prompt)
	}

	res, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("openai: transcribe: %w", err)
	}
	tr, err := stt.ParseVerbose([]byte(res.RawJSON()), cfg.WordTimestamps)
	if err != nil {
		return tr, fmt.Errorf("openai: %w", err)
	}
	return tr, nil
}
