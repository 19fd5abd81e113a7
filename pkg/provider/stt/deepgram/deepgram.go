// Package deepgram provides a Deepgram-backed STT provider using the
// prerecorded /v1/listen API. It implements the stt.Provider interface.
package deepgram

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

const (
	deepgramEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the listen endpoint.
func WithEndpoint(u string) Option {
	return func(p *Provider) {
		p.endpoint = u
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider backed by the Deepgram prerecorded API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		endpoint:   deepgramEndpoint,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe posts buf as 16 kHz mono WAV and converts the utterances of
// the response into subtitle entries.
func (p *Provider) Transcribe(ctx context.Context, buf audio.Buffer, cfg stt.Config) (types.Transcript, error) {
	listenURL, err := p.buildURL(cfg)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}
	wav, err := audio.EncodeWAV(audio.Normalize(buf, audio.VADFormat))
	if err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: encode wav: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, listenURL, bytes.NewReader(wav))
	if err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.Transcript{}, fmt.Errorf("deepgram: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return parseDeepgramResponse(data, cfg.WordTimestamps)
}

// buildURL constructs the listen endpoint URL for the given config.
func (p *Provider) buildURL(cfg stt.Config) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", cmp.Or(cfg.Language, p.language))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("utterances", "true")

	// nova-3 takes key terms; older models take keywords.
	param := "keywords"
	if strings.HasPrefix(p.model, "nova-3") {
		param = "keyterm"
	}
	for _, kw := range strings.Fields(cfg.Prompt) {
		q.Add(param, kw)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

type dgWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
}

// deepgramResponse is the JSON body returned by the prerecorded API.
type deepgramResponse struct {
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string   `json:"transcript"`
				Confidence float64  `json:"confidence"`
				Words      []dgWord `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

// parseDeepgramResponse converts a listen response into a Transcript. When
// the response has no utterances, entries are grouped from the words.
func parseDeepgramResponse(data []byte, withWords bool) (types.Transcript, error) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return types.Transcript{}, fmt.Errorf("deepgram: parse JSON response: %w", err)
	}
	var tr types.Transcript
	var words []types.Word
	if len(resp.Results.Channels) > 0 {
		ch := resp.Results.Channels[0]
		tr.Language = ch.DetectedLanguage
		if len(ch.Alternatives) > 0 {
			alt := ch.Alternatives[0]
			tr.Text = strings.TrimSpace(alt.Transcript)
			for _, w := range alt.Words {
				words = append(words, types.Word{
					Text:       cmp.Or(w.PunctuatedWord, w.Word),
					Start:      w.Start,
					End:        w.End,
					Confidence: w.Confidence,
				})
			}
		}
	}
	for _, u := range resp.Results.Utterances {
		text := strings.TrimSpace(u.Transcript)
		if text == "" || u.End <= u.Start {
			continue
		}
		tr.Entries = append(tr.Entries, types.SubtitleEntry{Index: len(tr.Entries) + 1, Start: u.Start, End: u.End, Text: text})
	}
	if len(tr.Entries) == 0 {
		tr.Entries = stt.EntriesFromWords(words, 0, 1.0)
	}
	if withWords {
		tr.Words = words
	}
	if len(tr.Entries) == 0 {
		return tr, stt.ErrNoSpeech
	}
	return tr, nil
}
