package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Config{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "utterances", "true", q.Get("utterances"))
	assertEqual(t, "smart_format", "true", q.Get("smart_format"))
}

func TestBuildURL_LanguageOverridenByCfg(t *testing.T) {
	// cfg.Language should take precedence over the provider-level default.
	p, err := New("key", WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Config{Language: "fr-FR"})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	assertEqual(t, "language", "fr-FR", u.Query().Get("language"))
}

func TestBuildURL_Keyterms(t *testing.T) {
	p, _ := New("key")
	rawURL, _ := p.buildURL(stt.Config{Prompt: "Eldrinax Zorrath"})
	u, _ := url.Parse(rawURL)
	if kts := u.Query()["keyterm"]; len(kts) != 2 || kts[0] != "Eldrinax" {
		t.Errorf("keyterm = %v", kts)
	}

	p, _ = New("key", WithModel("nova-2"))
	rawURL, _ = p.buildURL(stt.Config{Prompt: "Eldrinax"})
	u, _ = url.Parse(rawURL)
	if kws := u.Query()["keywords"]; len(kws) != 1 {
		t.Errorf("keywords = %v", kws)
	}
}

func TestBuildURL_NoKeywords(t *testing.T) {
	p, _ := New("key")
	rawURL, _ := p.buildURL(stt.Config{})
	u, _ := url.Parse(rawURL)
	if _, ok := u.Query()["keyterm"]; ok {
		t.Error("expected no 'keyterm' param when no prompt is given")
	}
}

// ---- JSON parsing tests ----

const listenBody = `{
	"metadata": {"request_id": "abc"},
	"results": {
		"channels": [{
			"detected_language": "en",
			"alternatives": [{
				"transcript": "Hello world. Bye.",
				"confidence": 0.95,
				"words": [
					{"word": "hello", "punctuated_word": "Hello", "start": 0.1, "end": 0.5, "confidence": 0.97},
					{"word": "world", "punctuated_word": "world.", "start": 0.6, "end": 1.0, "confidence": 0.93},
					{"word": "bye", "start": 2.0, "end": 2.4, "confidence": 0.9}
				]
			}]
		}],
		"utterances": [
			{"start": 0.1, "end": 1.0, "transcript": "Hello world."},
			{"start": 2.0, "end": 2.4, "transcript": "Bye."}
		]
	}
}`

func TestParseDeepgramResponse_Utterances(t *testing.T) {
	tr, err := parseDeepgramResponse([]byte(listenBody), true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	assertEqual(t, "text", "Hello world. Bye.", tr.Text)
	assertEqual(t, "language", "en", tr.Language)
	if len(tr.Entries) != 2 || tr.Entries[1].Start != 2.0 || tr.Entries[1].Index != 2 {
		t.Fatalf("entries = %+v", tr.Entries)
	}
	if len(tr.Words) != 3 {
		t.Fatalf("expected 3 words, got %d", len(tr.Words))
	}
	assertEqual(t, "word[0]", "Hello", tr.Words[0].Text)
	assertEqual(t, "word[2]", "bye", tr.Words[2].Text)
}

func TestParseDeepgramResponse_WordsOnly(t *testing.T) {
	raw := []byte(`{"results": {"channels": [{"alternatives": [{"transcript": "one two",
		"words": [{"word": "one", "start": 0, "end": 0.4}, {"word": "two", "start": 3, "end": 3.4}]}]}]}}`)
	tr, err := parseDeepgramResponse(raw, false)
	if err != nil {
		t.Fatal(err)
	}
	// The 2.6 s pause splits the words into two entries.
	if len(tr.Entries) != 2 {
		t.Errorf("entries = %+v", tr.Entries)
	}
	if len(tr.Words) != 0 {
		t.Error("words returned without request")
	}
}

func TestParseDeepgramResponse_Empty(t *testing.T) {
	_, err := parseDeepgramResponse([]byte(`{"results": {"channels": [{"alternatives": []}]}}`), false)
	if !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("err = %v, want ErrNoSpeech", err)
	}
}

func TestParseDeepgramResponse_InvalidJSON(t *testing.T) {
	if _, err := parseDeepgramResponse([]byte(`{invalid`), false); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// ---- HTTP tests ----

func TestTranscribe(t *testing.T) {
	var (
		auth, ctype string
		query       url.Values
		body        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, ctype, query = r.Header.Get("Authorization"), r.Header.Get("Content-Type"), r.URL.Query()
		body, _ = io.ReadAll(r.Body)
		io.WriteString(w, listenBody)
	}))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint(srv.URL+"/v1/listen"))
	buf := audio.Silence(audio.Format{SampleRate: 8000, Channels: 1}, 800)
	tr, err := p.Transcribe(context.Background(), buf, stt.Config{Language: "de"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	assertEqual(t, "auth", "Token secret", auth)
	assertEqual(t, "content-type", "audio/wav", ctype)
	assertEqual(t, "language", "de", query.Get("language"))
	got, err := audio.DecodeWAV(body)
	if err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if got.SampleRate != 16000 || got.Frames() != 1600 {
		t.Errorf("upload = %d Hz, %d frames", got.SampleRate, got.Frames())
	}
	if len(tr.Entries) != 2 {
		t.Errorf("entries = %+v", tr.Entries)
	}
}

func TestTranscribe_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_code":"INVALID_AUTH"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("bad", WithEndpoint(srv.URL))
	if _, err := p.Transcribe(context.Background(), audio.Silence(audio.VADFormat, 160), stt.Config{}); err == nil {
		t.Fatal("expected error")
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New("")
	if err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertEqual(t, "model", defaultModel, p.model)
	assertEqual(t, "language", defaultLanguage, p.language)
}

// ---- helpers ----

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
