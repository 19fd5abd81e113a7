package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New("", ""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	t.Parallel()

	p, err := New("sk-test", "")
	if err != nil {
		t.Fatal(err)
	}
	if p.model != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", p.model)
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	var (
		fields map[string][]string
		auth   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields = r.MultipartForm.Value
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text": "Hello there.", "language": "english", "duration": 1.5,
		  "segments": [{"start": 0, "end": 1.5, "text": " Hello there."}],
		  "words": [{"word": "Hello", "start": 0, "end": 0.6}, {"word": "there.", "start": 0.7, "end": 1.4}]}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "", WithBaseURL(srv.URL), WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := p.Transcribe(context.Background(), audio.Silence(audio.VADFormat, 16000), stt.Config{Language: "en", WordTimestamps: true})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
	if got := fields["response_format"]; len(got) != 1 || got[0] != "verbose_json" {
		t.Errorf("response_format = %v", got)
	}
	if got := fields["model"]; len(got) != 1 || got[0] != "whisper-1" {
		t.Errorf("model = %v", got)
	}
	if got := fields["language"]; len(got) != 1 || got[0] != "en" {
		t.Errorf("language = %v", got)
	}
	if len(tr.Entries) != 1 || tr.Entries[0].End != 1.5 {
		t.Errorf("entries = %+v", tr.Entries)
	}
	if len(tr.Words) != 2 || tr.Words[1].Text != "there." {
		t.Errorf("words = %+v", tr.Words)
	}
}

func TestTranscribe_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	}))
	defer srv.Close()

	p, _ := New("sk-bad", "", WithBaseURL(srv.URL), WithMaxRetries(0))
	_, err := p.Transcribe(context.Background(), audio.Silence(audio.VADFormat, 1600), stt.Config{})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("err = %v, want API error", err)
	}
}
