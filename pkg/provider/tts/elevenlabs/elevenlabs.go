// Package elevenlabs provides an ElevenLabs-backed TTS provider.
//
// Synthesize uses the REST text-to-speech endpoint. SynthesizeStream keeps
// the streaming WebSocket API, ConvertVoice uses speech-to-speech, and Quota
// reads the account subscription.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io/v1"
	defaultWSBaseURL = "wss://api.elevenlabs.io/v1"
	defaultModel     = "eleven_multilingual_v2"
	defaultSTSModel  = "eleven_multilingual_sts_v2"
	defaultOutputFmt = "mp3_44100_128"
	defaultStreamFmt = "pcm_16000"
)

var (
	_ tts.Provider       = (*Provider)(nil)
	_ tts.StreamProvider = (*Provider)(nil)
	_ tts.VoiceConverter = (*Provider)(nil)
	_ tts.QuotaChecker   = (*Provider)(nil)
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs text-to-speech model ID.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithSTSModel sets the speech-to-speech model used by ConvertVoice.
func WithSTSModel(model string) Option {
	return func(p *Provider) {
		p.stsModel = model
	}
}

// WithOutputFormat sets the format of REST responses (e.g., "mp3_44100_128",
// "pcm_24000").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithStreamFormat sets the PCM format of streamed audio (e.g., "pcm_16000").
func WithStreamFormat(format string) Option {
	return func(p *Provider) {
		p.streamFormat = format
	}
}

// WithVoiceSettings sets stability and similarity boost, both in [0, 1].
// Defaults: 0.5 and 0.75.
func WithVoiceSettings(stability, similarity float64) Option {
	return func(p *Provider) {
		p.settings = voiceSettings{Stability: stability, SimilarityBoost: similarity}
	}
}

// WithBaseURL overrides the REST and WebSocket base URLs.
func WithBaseURL(rest, ws string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(rest, "/")
		p.wsBaseURL = strings.TrimRight(ws, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider backed by the ElevenLabs API.
type Provider struct {
	apiKey       string
	model        string
	stsModel     string
	outputFormat string
	streamFormat string
	settings     voiceSettings
	baseURL      string
	wsBaseURL    string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		stsModel:     defaultSTSModel,
		outputFormat: defaultOutputFmt,
		streamFormat: defaultStreamFmt,
		settings:     voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		baseURL:      defaultBaseURL,
		wsBaseURL:    defaultWSBaseURL,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ---- REST synthesis ----

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize renders text through POST /text-to-speech/{voice} and decodes
// the response.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (audio.Buffer, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Buffer{}, tts.ErrEmptyText
	}
	if voice.ID == "" {
		return audio.Buffer{}, errors.New("elevenlabs: voice.ID must not be empty")
	}
	body, err := json.Marshal(synthesizeRequest{Text: text, ModelID: p.model, VoiceSettings: p.settings})
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", p.baseURL, url.PathEscape(voice.ID), url.QueryEscape(p.outputFormat))
	data, err := p.do(ctx, http.MethodPost, endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	buf, err := decodeAudio(data, p.outputFormat)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	return buf, nil
}

// ConvertVoice re-voices speech through POST /speech-to-speech/{voice}. The
// input is uploaded as 16 kHz mono WAV.
func (p *Provider) ConvertVoice(ctx context.Context, speech audio.Buffer, voice types.VoiceProfile) (audio.Buffer, error) {
	if voice.ID == "" {
		return audio.Buffer{}, errors.New("elevenlabs: voice.ID must not be empty")
	}
	if speech.IsEmpty() {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: convert voice: %w", audio.ErrEmptyBuffer)
	}
	wav, err := audio.EncodeWAV(audio.Normalize(speech, audio.VADFormat))
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: encode wav: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: write audio: %w", err)
	}
	if err := mw.WriteField("model_id", p.stsModel); err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: write model field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: close multipart writer: %w", err)
	}

	endpoint := fmt.Sprintf("%s/speech-to-speech/%s?output_format=%s", p.baseURL, url.PathEscape(voice.ID), url.QueryEscape(p.outputFormat))
	data, err := p.do(ctx, http.MethodPost, endpoint, mw.FormDataContentType(), &body)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: convert voice: %w", err)
	}
	buf, err := decodeAudio(data, p.outputFormat)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("elevenlabs: convert voice: %w", err)
	}
	return buf, nil
}

// subscription is the subset of GET /user/subscription used for quota.
type subscription struct {
	Tier           string `json:"tier"`
	CharacterLimit int    `json:"character_limit"`
	CharacterCount int    `json:"character_count"`
}

// Quota reports the account's character allowance.
func (p *Provider) Quota(ctx context.Context) (tts.Quota, error) {
	data, err := p.do(ctx, http.MethodGet, p.baseURL+"/user/subscription", "", nil)
	if err != nil {
		return tts.Quota{}, fmt.Errorf("elevenlabs: subscription: %w", err)
	}
	var s subscription
	if err := json.Unmarshal(data, &s); err != nil {
		return tts.Quota{}, fmt.Errorf("elevenlabs: subscription decode: %w", err)
	}
	return tts.Quota{CharacterLimit: s.CharacterLimit, CharacterCount: s.CharacterCount}, nil
}

func (p *Provider) do(ctx context.Context, method, endpoint, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", p.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// pcmRate parses the sample rate out of a "pcm_<rate>" format name.
func pcmRate(format string) (int, bool) {
	r, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, false
	}
	rate, err := strconv.Atoi(r)
	return rate, err == nil && rate > 0
}

// decodeAudio decodes a response body in the given ElevenLabs output format.
func decodeAudio(data []byte, format string) (audio.Buffer, error) {
	if rate, ok := pcmRate(format); ok {
		return audio.FromBytes(data[:len(data)-len(data)%2], rate, 1)
	}
	if strings.HasPrefix(format, "mp3_") {
		return audio.DecodeMP3Bytes(data)
	}
	return audio.Buffer{}, fmt.Errorf("%w: output format %q", audio.ErrUnsupportedFormat, format)
}

// StreamFormat returns the PCM format emitted by SynthesizeStream.
func (p *Provider) StreamFormat() audio.Format {
	rate, ok := pcmRate(p.streamFormat)
	if !ok {
		rate = 16000
	}
	return audio.Format{SampleRate: rate, Channels: 1}
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"` // error or info
}

// boiMessage is used for the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// SynthesizeStream opens a WebSocket to ElevenLabs, pipes text fragments from
// the text channel, and returns a channel emitting raw PCM audio chunks in
// StreamFormat.
//
// The returned audio channel is closed when synthesis is complete or ctx is cancelled.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(voice.ID), nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	// ElevenLabs requires a non-empty first text value.
	boi := boiMessage{Text: " ", VoiceSettings: &p.settings, XiAPIKey: p.apiKey}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	audioCh := make(chan []byte, 256)

	go func() {
		defer close(audioCh)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				_, msg, err := conn.Read(ctx)
				if err != nil {
					return
				}
				var resp audioResponse
				if err := json.Unmarshal(msg, &resp); err != nil {
					continue
				}
				if resp.Audio != "" {
					pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
					if err != nil {
						continue
					}
					select {
					case audioCh <- pcm:
					case <-ctx.Done():
						return
					}
				}
				if resp.IsFinal {
					return
				}
			}
		}()

		for {
			select {
			case sentence, ok := <-text:
				if !ok {
					// Text channel closed: send the flush command and wait
					// for the reader to drain the remaining audio.
					flushBytes, _ := buildWSMessage("", nil)
					_ = conn.Write(ctx, websocket.MessageText, flushBytes)
					<-readDone
					return
				}
				if strings.TrimSpace(sentence) == "" {
					continue
				}
				// Voice settings were sent with the BOI message.
				msgBytes, _ := buildWSMessage(sentence+" ", nil)
				if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return audioCh, nil
}

// buildWSMessage constructs the JSON text payload for a single text fragment.
func buildWSMessage(text string, vs *voiceSettings) ([]byte, error) {
	return json.Marshal(textMessage{Text: text, VoiceSettings: vs})
}

// streamURL constructs the WebSocket URL for a given voice.
func (p *Provider) streamURL(voiceID string) string {
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.streamFormat)
	return fmt.Sprintf("%s/text-to-speech/%s/stream-input?%s", p.wsBaseURL, url.PathEscape(voiceID), q.Encode())
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available from ElevenLabs for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	data, err := p.do(ctx, http.MethodGet, p.baseURL+"/voices", "", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	profiles, err := parseVoicesResponse(data)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return profiles, nil
}

// parseVoicesResponse parses a /v1/voices body into voice profiles.
func parseVoicesResponse(data []byte) ([]types.VoiceProfile, error) {
	var vr voicesResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, err
	}
	profiles := make([]types.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		profiles = append(profiles, types.VoiceProfile{
			ID:       v.VoiceID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Metadata: meta,
		})
	}
	return profiles, nil
}
