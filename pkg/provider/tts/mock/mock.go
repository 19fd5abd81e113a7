// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled clips per text and to verify that the
// correct VoiceProfile and text are passed to the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Clip:             audio.SilenceMs(audio.VADFormat, 500),
//	    ListVoicesResult: []types.VoiceProfile{{ID: "v1", Name: "Alice"}},
//	}
//	clip, _ := p.Synthesize(ctx, "hello", voice)
package mock

import (
	"context"
	"sync"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the VoiceProfile passed to Synthesize.
	Voice types.VoiceProfile
}

// ConvertVoiceCall records a single invocation of ConvertVoice.
type ConvertVoiceCall struct {
	Speech audio.Buffer
	Voice  types.VoiceProfile
}

// Provider is a mock implementation of tts.Provider, tts.VoiceConverter and
// tts.QuotaChecker.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Clips maps a text to the clip returned for it. Texts not in the map get
	// Clip.
	Clips map[string]audio.Buffer

	// Clip is the default clip returned by Synthesize.
	Clip audio.Buffer

	// Errs maps a text to an error returned for it.
	Errs map[string]error

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []types.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// ConvertResult and ConvertErr are returned by ConvertVoice.
	ConvertResult audio.Buffer
	ConvertErr    error

	// QuotaResult and QuotaErr are returned by Quota.
	QuotaResult tts.Quota
	QuotaErr    error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// ListVoicesCallCount is the number of ListVoices calls.
	ListVoicesCallCount int

	// ConvertVoiceCalls records every call to ConvertVoice.
	ConvertVoiceCalls []ConvertVoiceCall

	// QuotaCallCount is the number of Quota calls.
	QuotaCallCount int
}

// Synthesize records the call and returns the configured clip or error.
func (p *Provider) Synthesize(_ context.Context, text string, voice types.VoiceProfile) (audio.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if p.SynthesizeErr != nil {
		return audio.Buffer{}, p.SynthesizeErr
	}
	if err, ok := p.Errs[text]; ok {
		return audio.Buffer{}, err
	}
	if clip, ok := p.Clips[text]; ok {
		return clip, nil
	}
	return p.Clip, nil
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(context.Context) ([]types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListVoicesCallCount++
	return p.ListVoicesResult, p.ListVoicesErr
}

// ConvertVoice records the call and returns ConvertResult, ConvertErr.
func (p *Provider) ConvertVoice(_ context.Context, speech audio.Buffer, voice types.VoiceProfile) (audio.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConvertVoiceCalls = append(p.ConvertVoiceCalls, ConvertVoiceCall{Speech: speech, Voice: voice})
	return p.ConvertResult, p.ConvertErr
}

// Quota records the call and returns QuotaResult, QuotaErr.
func (p *Provider) Quota(context.Context) (tts.Quota, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.QuotaCallCount++
	return p.QuotaResult, p.QuotaErr
}

// Texts returns the texts passed to Synthesize so far, in call order.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SynthesizeCalls))
	for i, c := range p.SynthesizeCalls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.ListVoicesCallCount = 0
	p.ConvertVoiceCalls = nil
	p.QuotaCallCount = 0
}

// Ensure Provider implements the tts interfaces at compile time.
var (
	_ tts.Provider       = (*Provider)(nil)
	_ tts.VoiceConverter = (*Provider)(nil)
	_ tts.QuotaChecker   = (*Provider)(nil)
)

// Basic is a tts.Provider with no optional capabilities.
type Basic struct {
	Clip audio.Buffer
	Err  error
}

// Synthesize returns Clip, Err.
func (b *Basic) Synthesize(context.Context, string, types.VoiceProfile) (audio.Buffer, error) {
	return b.Clip, b.Err
}

// ListVoices returns nothing.
func (b *Basic) ListVoices(context.Context) ([]types.VoiceProfile, error) { return nil, nil }

var _ tts.Provider = (*Basic)(nil)
