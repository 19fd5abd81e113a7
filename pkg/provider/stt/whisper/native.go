// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// ErrNoModel is returned by OpenModel when neither the requested model nor
// any smaller one could be loaded.
var ErrNoModel = errors.New("whisper: no model could be loaded")

// ModelSize names a ggml whisper model.
type ModelSize string

const (
	SizeLarge  ModelSize = "large"
	SizeMedium ModelSize = "medium"
	SizeSmall  ModelSize = "small"
	SizeBase   ModelSize = "base"
	SizeTiny   ModelSize = "tiny"
)

// sizes is ordered largest first; the fallback walks towards the end.
var sizes = []ModelSize{SizeLarge, SizeMedium, SizeSmall, SizeBase, SizeTiny}

// fallbackSizes returns size followed by every smaller model. Unknown sizes
// yield only themselves.
func fallbackSizes(size ModelSize) []ModelSize {
	i := slices.Index(sizes, size)
	if i < 0 {
		return []ModelSize{size}
	}
	return sizes[i:]
}

// ModelFile returns the conventional ggml file name for size inside dir.
func ModelFile(dir string, size ModelSize) string {
	return filepath.Join(dir, "ggml-"+string(size)+".bin")
}

// openFirst tries load for each size in order and returns the first success.
// Failures are joined into the returned error when nothing loads.
func openFirst[T any](order []ModelSize, load func(ModelSize) (T, error), log *slog.Logger) (T, ModelSize, error) {
	var (
		zero T
		errs []error
	)
	for i, size := range order {
		m, err := load(size)
		if err == nil {
			if i > 0 {
				log.Warn("whisper: using smaller model", "requested", order[0], "loaded", size)
			}
			return m, size, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", size, err))
	}
	return zero, "", fmt.Errorf("%w: %w", ErrNoModel, errors.Join(errs...))
}

// ModelOption configures OpenModel.
type ModelOption func(*modelOptions)

type modelOptions struct {
	fallback bool
	logger   *slog.Logger
}

// WithoutFallback makes OpenModel fail instead of trying smaller models.
func WithoutFallback() ModelOption {
	return func(o *modelOptions) { o.fallback = false }
}

// WithModelLogger sets the logger used to report size fallbacks.
func WithModelLogger(l *slog.Logger) ModelOption {
	return func(o *modelOptions) { o.logger = l }
}

// ModelHandle owns a loaded whisper.cpp model. A handle is opened for one
// request and closed when the request finishes.
type ModelHandle struct {
	model whisperlib.Model
	size  ModelSize
	path  string
}

// OpenModel loads the ggml model of the given size from dir, falling back
// to each smaller size when the file is missing or fails to load.
func OpenModel(dir string, size ModelSize, opts ...ModelOption) (*ModelHandle, error) {
	o := modelOptions{fallback: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	order := []ModelSize{size}
	if o.fallback {
		order = fallbackSizes(size)
	}
	model, loaded, err := openFirst(order, func(s ModelSize) (whisperlib.Model, error) {
		path := ModelFile(dir, s)
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return whisperlib.New(path)
	}, o.logger)
	if err != nil {
		return nil, err
	}
	return &ModelHandle{model: model, size: loaded, path: ModelFile(dir, loaded)}, nil
}

// Size reports which model was actually loaded.
func (h *ModelHandle) Size() ModelSize { return h.size }

// Path returns the model file the handle was loaded from.
func (h *ModelHandle) Path() string { return h.path }

// Close releases the model.
func (h *ModelHandle) Close() error {
	if h == nil || h.model == nil {
		return nil
	}
	err := h.model.Close()
	h.model = nil
	return err
}

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO). Each Transcribe call creates its own context from the shared
// model, so concurrent calls do not interfere.
type NativeProvider struct {
	handle   *ModelHandle
	language string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code used when the request Config
// leaves it empty. Defaults to "en"; "auto" enables detection.
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider over an open model. The handle stays
// owned by the caller.
func NewNative(h *ModelHandle, opts ...NativeOption) (*NativeProvider, error) {
	if h == nil || h.model == nil {
		return nil, errors.New("whisper: model handle must be open")
	}
	p := &NativeProvider{handle: h, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe runs whisper.cpp over buf. Word timing comes from token
// timestamps when cfg.WordTimestamps is set.
func (p *NativeProvider) Transcribe(ctx context.Context, buf audio.Buffer, cfg stt.Config) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	if p.handle.model == nil {
		return types.Transcript{}, errors.New("whisper: model handle is closed")
	}
	samples := toFloat32(buf)

	wctx, err := p.handle.model.NewContext()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}
	lang := cmp.Or(cfg.Language, p.language)
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	if cfg.WordTimestamps {
		wctx.SetTokenTimestamps(true)
	}
	if cfg.Prompt != "" {
		wctx.SetInitialPrompt(cfg.Prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: %w", err)
	}

	var segs []nativeSegment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		ns := nativeSegment{start: seg.Start.Seconds(), end: seg.End.Seconds(), text: seg.Text}
		for _, tok := range seg.Tokens {
			ns.tokens = append(ns.tokens, nativeToken{text: tok.Text, start: tok.Start.Seconds(), end: tok.End.Seconds(), p: float64(tok.P)})
		}
		segs = append(segs, ns)
	}

	tr := buildTranscript(segs, cfg.WordTimestamps)
	if lang != "auto" {
		tr.Language = lang
	}
	if len(tr.Entries) == 0 {
		return tr, stt.ErrNoSpeech
	}
	return tr, nil
}

type nativeToken struct {
	text       string
	start, end float64
	p          float64
}

type nativeSegment struct {
	start, end float64
	text       string
	tokens     []nativeToken
}

// buildTranscript turns decoded segments into a transcript. Tokens are
// sub-word pieces: a piece starting with a space opens a new word, others
// extend the current one. Control tokens such as "[_BEG_]" or "<|en|>" are
// dropped.
func buildTranscript(segs []nativeSegment, words bool) types.Transcript {
	var (
		tr    types.Transcript
		texts []string
	)
	for _, s := range segs {
		text := strings.TrimSpace(s.text)
		if text == "" || s.end <= s.start {
			continue
		}
		texts = append(texts, text)
		tr.Entries = append(tr.Entries, types.SubtitleEntry{
			Index: len(tr.Entries) + 1,
			Start: s.start,
			End:   s.end,
			Text:  text,
		})
		if !words {
			continue
		}
		var (
			cur   *types.Word
			probs int
		)
		flush := func() {
			if cur == nil {
				return
			}
			if probs > 0 {
				cur.Confidence /= float64(probs)
			}
			if w := strings.TrimSpace(cur.Text); w != "" {
				cur.Text = w
				tr.Words = append(tr.Words, *cur)
			}
			cur, probs = nil, 0
		}
		for _, tok := range s.tokens {
			if isControlToken(tok.text) {
				continue
			}
			if cur == nil || strings.HasPrefix(tok.text, " ") {
				flush()
				cur = &types.Word{Start: tok.start}
			}
			cur.Text += tok.text
			cur.End = tok.end
			cur.Confidence += tok.p
			probs++
		}
		flush()
	}
	tr.Text = strings.Join(texts, " ")
	return tr
}

func isControlToken(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.HasPrefix(s, "[_") || strings.HasPrefix(s, "<|")
}
