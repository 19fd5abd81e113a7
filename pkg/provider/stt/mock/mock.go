// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to return a controlled transcript and to verify which audio
// and Config were submitted.
//
// Example:
//
//	p := &mock.Provider{
//	    Result: types.Transcript{Text: "hello", Entries: []types.SubtitleEntry{{Index: 1, Start: 0, End: 1, Text: "hello"}}},
//	}
//	tr, _ := p.Transcribe(ctx, buf, stt.Config{Language: "en"})
package mock

import (
	"context"
	"sync"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Buf is the audio passed to Transcribe.
	Buf audio.Buffer
	// Cfg is the Config passed to Transcribe.
	Cfg stt.Config
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every successful Transcribe call.
	Result types.Transcript

	// ResultFunc, if set, computes the result from the submitted audio and
	// takes precedence over Result.
	ResultFunc func(buf audio.Buffer) types.Transcript

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Calls records every call to Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(ctx context.Context, buf audio.Buffer, cfg stt.Config) (types.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{Buf: buf, Cfg: cfg})
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, err
	}
	if p.Err != nil {
		return types.Transcript{}, p.Err
	}
	if p.ResultFunc != nil {
		return p.ResultFunc(buf), nil
	}
	return p.Result, nil
}

// CallCount returns the number of Transcribe calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
