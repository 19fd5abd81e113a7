// Package assemblyai provides an STT provider backed by the AssemblyAI
// transcript API.
//
// A transcription is three calls: the WAV is uploaded, a transcript job is
// submitted for the returned URL, and the job is polled until it completes.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

const (
	defaultBaseURL      = "https://api.assemblyai.com"
	defaultSpeechModel  = "best"
	defaultPollInterval = 3 * time.Second

	// maxEntryChars bounds entries built from words when the API returns no
	// utterances.
	maxEntryChars = 80
)

// ErrTranscriptFailed is returned when the transcript job ends in the
// "error" state.
var ErrTranscriptFailed = errors.New("assemblyai: transcript failed")

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithSpeechModel selects the speech model ("best", "nano"). Default: "best".
func WithSpeechModel(m string) Option {
	return func(p *Provider) { p.speechModel = m }
}

// WithPollInterval sets how often a submitted job is polled. Default: 3 s.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) { p.pollInterval = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider using AssemblyAI.
type Provider struct {
	apiKey       string
	baseURL      string
	speechModel  string
	pollInterval time.Duration
	httpClient   *http.Client
}

// New creates a Provider authenticating with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("assemblyai: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		speechModel:  defaultSpeechModel,
		pollInterval: defaultPollInterval,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type submitRequest struct {
	AudioURL     string   `json:"audio_url"`
	SpeechModel  string   `json:"speech_model,omitempty"`
	LanguageCode string   `json:"language_code,omitempty"`
	Punctuate    bool     `json:"punctuate"`
	FormatText   bool     `json:"format_text"`
	WordBoost    []string `json:"word_boost,omitempty"`
}

type word struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
}

type utterance struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

type transcript struct {
	ID           string      `json:"id"`
	Status       string      `json:"status"`
	Error        string      `json:"error"`
	Text         string      `json:"text"`
	LanguageCode string      `json:"language_code"`
	Words        []word      `json:"words"`
	Utterances   []utterance `json:"utterances"`
}

// Transcribe uploads buf, submits a transcript job and waits for it. Times
// come back in milliseconds and are converted to seconds.
func (p *Provider) Transcribe(ctx context.Context, buf audio.Buffer, cfg stt.Config) (types.Transcript, error) {
	wav, err := audio.EncodeWAV(audio.Normalize(buf, audio.VADFormat))
	if err != nil {
		return types.Transcript{}, fmt.Errorf("assemblyai: encode wav: %w", err)
	}

	var up struct {
		UploadURL string `json:"upload_url"`
	}
	if err := p.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", bytes.NewReader(wav), &up); err != nil {
		return types.Transcript{}, fmt.Errorf("assemblyai: upload: %w", err)
	}

	req := submitRequest{
		AudioURL:     up.UploadURL,
		SpeechModel:  p.speechModel,
		LanguageCode: cfg.Language,
		Punctuate:    true,
		FormatText:   true,
	}
	if cfg.Prompt != "" {
		req.WordBoost = strings.Fields(cfg.Prompt)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("assemblyai: marshal request: %w", err)
	}
	var job transcript
	if err := p.do(ctx, http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(body), &job); err != nil {
		return types.Transcript{}, fmt.Errorf("assemblyai: submit: %w", err)
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		switch job.Status {
		case "completed":
			return convert(job, cfg.WordTimestamps)
		case "error":
			return types.Transcript{}, fmt.Errorf("%w: %s", ErrTranscriptFailed, job.Error)
		}
		select {
		case <-ctx.Done():
			return types.Transcript{}, fmt.Errorf("assemblyai: poll %s: %w", job.ID, ctx.Err())
		case <-ticker.C:
		}
		if err := p.do(ctx, http.MethodGet, "/v2/transcript/"+job.ID, "", nil, &job); err != nil {
			return types.Transcript{}, fmt.Errorf("assemblyai: poll: %w", err)
		}
	}
}

func (p *Provider) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", p.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}

func ms(v int64) float64 { return float64(v) / 1000 }

// convert builds entries from utterances when present, otherwise from words
// grouped up to maxEntryChars characters.
func convert(job transcript, withWords bool) (types.Transcript, error) {
	tr := types.Transcript{Text: strings.TrimSpace(job.Text), Language: job.LanguageCode}
	for _, u := range job.Utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" || u.End <= u.Start {
			continue
		}
		tr.Entries = append(tr.Entries, types.SubtitleEntry{Index: len(tr.Entries) + 1, Start: ms(u.Start), End: ms(u.End), Text: text})
	}
	words := make([]types.Word, 0, len(job.Words))
	for _, w := range job.Words {
		words = append(words, types.Word{Text: w.Text, Start: ms(w.Start), End: ms(w.End), Confidence: w.Confidence})
	}
	if len(tr.Entries) == 0 {
		tr.Entries = groupByChars(words, maxEntryChars)
	}
	if withWords {
		tr.Words = words
	}
	if len(tr.Entries) == 0 {
		return tr, stt.ErrNoSpeech
	}
	return tr, nil
}

func groupByChars(words []types.Word, maxChars int) []types.SubtitleEntry {
	var (
		entries []types.SubtitleEntry
		cur     []string
		start   float64
		n       int
	)
	for i, w := range words {
		if len(cur) == 0 {
			start = w.Start
		}
		cur = append(cur, w.Text)
		n += len(w.Text) + 1
		if n >= maxChars || i == len(words)-1 {
			entries = append(entries, types.SubtitleEntry{
				Index: len(entries) + 1,
				Start: start,
				End:   w.End,
				Text:  strings.Join(cur, " "),
			})
			cur, n = nil, 0
		}
	}
	return entries
}
