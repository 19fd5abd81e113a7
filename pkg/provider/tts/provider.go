// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (ElevenLabs, a local Coqui
// server) and presents a uniform batch interface: one subtitle line in, one
// decoded audio clip out. The resynthesizer calls Synthesize once per entry and
// reconciles the clip's length against the entry's timing window.
//
// Optional capabilities (streaming, voice conversion, quota reporting) are
// separate interfaces discovered with a type assertion.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

var (
	// ErrInsufficientCredits is returned when the account quota cannot cover a
	// synthesis job.
	ErrInsufficientCredits = errors.New("tts: insufficient credits")

	// ErrEmptyText is returned by Synthesize for blank input.
	ErrEmptyText = errors.New("tts: text must not be empty")
)

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. The resynthesizer issues
// several Synthesize calls in parallel.
type Provider interface {
	// Synthesize renders text with voice and returns the decoded clip. The
	// clip's sample rate and channel count are the provider's native output;
	// callers convert as needed.
	//
	// Returns an error if the voice is unknown, the backend fails, or ctx is
	// cancelled. A failure affects only this clip.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (audio.Buffer, error)

	// ListVoices returns all voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}

// StreamProvider is implemented by providers that can synthesise
// incrementally. The returned channel carries raw 16-bit little-endian PCM and
// is closed when all text has been synthesised or ctx is cancelled.
type StreamProvider interface {
	SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (<-chan []byte, error)
}

// VoiceConverter is implemented by providers that can re-voice existing
// speech while keeping its timing.
type VoiceConverter interface {
	ConvertVoice(ctx context.Context, speech audio.Buffer, voice types.VoiceProfile) (audio.Buffer, error)
}

// QuotaChecker is implemented by providers with a metered character quota.
type QuotaChecker interface {
	Quota(ctx context.Context) (Quota, error)
}

// Quota is a snapshot of the account's character allowance.
type Quota struct {
	CharacterLimit int
	CharacterCount int
}

// Remaining returns the unused characters, never negative.
func (q Quota) Remaining() int {
	return max(q.CharacterLimit-q.CharacterCount, 0)
}

// RequiredCharacters returns how many characters synthesising texts will
// consume.
func RequiredCharacters(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += utf8.RuneCountInString(t)
	}
	return n
}

// CheckQuota fails with ErrInsufficientCredits when p reports a quota that
// cannot cover texts. Providers without a quota always pass.
func CheckQuota(ctx context.Context, p Provider, texts ...string) error {
	qc, ok := p.(QuotaChecker)
	if !ok {
		return nil
	}
	q, err := qc.Quota(ctx)
	if err != nil {
		return fmt.Errorf("tts: check quota: %w", err)
	}
	if need := RequiredCharacters(texts...); need > q.Remaining() {
		return fmt.Errorf("%w: %d available, %d required", ErrInsufficientCredits, q.Remaining(), need)
	}
	return nil
}

// CollectStream drains a PCM stream into a buffer of the given format.
func CollectStream(ctx context.Context, ch <-chan []byte, f audio.Format) (audio.Buffer, error) {
	var pcm []byte
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				// Drop a dangling odd byte rather than fail the clip.
				pcm = pcm[:len(pcm)-len(pcm)%(2*max(f.Channels, 1))]
				return audio.FromBytes(pcm, f.SampleRate, f.Channels)
			}
			pcm = append(pcm, chunk...)
		case <-ctx.Done():
			return audio.Buffer{}, fmt.Errorf("tts: collect stream: %w", ctx.Err())
		}
	}
}
