package stt

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ChunkOptions configures TranscribeChunked.
type ChunkOptions struct {
	// ChunkSeconds is the chunk length. Default: 300 (5 minutes).
	ChunkSeconds int

	// Concurrency bounds parallel chunk requests. Default: 2.
	Concurrency int
}

func (o ChunkOptions) withDefaults() ChunkOptions {
	if o.ChunkSeconds <= 0 {
		o.ChunkSeconds = 300
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 2
	}
	return o
}

// TranscribeChunked splits buf into fixed-length chunks, transcribes them
// concurrently with p and merges the results in order. Entry and word times
// are shifted by each chunk's offset and entries are re-indexed from 1.
//
// Buffers no longer than one chunk are passed through in a single call. Any
// chunk failure fails the whole transcription.
func TranscribeChunked(ctx context.Context, p Provider, buf audio.Buffer, cfg Config, opts ChunkOptions) (types.Transcript, error) {
	opts = opts.withDefaults()
	chunkFrames := opts.ChunkSeconds * buf.SampleRate
	if chunkFrames <= 0 || buf.Frames() <= chunkFrames {
		return p.Transcribe(ctx, buf, cfg)
	}

	n := (buf.Frames() + chunkFrames - 1) / chunkFrames
	parts := make([]types.Transcript, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range n {
		g.Go(func() error {
			chunk := buf.Slice(i*chunkFrames, (i+1)*chunkFrames)
			tr, err := p.Transcribe(gctx, chunk, cfg)
			if err != nil {
				return fmt.Errorf("stt: chunk %d/%d: %w", i+1, n, err)
			}
			parts[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.Transcript{}, err
	}
	return mergeChunks(parts, float64(opts.ChunkSeconds)), nil
}

func mergeChunks(parts []types.Transcript, chunkSeconds float64) types.Transcript {
	var (
		out   types.Transcript
		texts []string
	)
	for i, p := range parts {
		offset := float64(i) * chunkSeconds
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
		if out.Language == "" {
			out.Language = p.Language
		}
		for _, e := range p.Entries {
			e.Start += offset
			e.End += offset
			e.Index = len(out.Entries) + 1
			out.Entries = append(out.Entries, e)
		}
		for _, w := range p.Words {
			w.Start += offset
			w.End += offset
			out.Words = append(out.Words, w)
		}
	}
	out.Text = strings.Join(texts, " ")
	return out
}

// EntriesFromWords groups words into subtitle entries of at most maxWords
// words, breaking early after sentence punctuation or at pauses longer than
// maxGap seconds. Used by backends that report words but no segments.
func EntriesFromWords(words []types.Word, maxWords int, maxGap float64) []types.SubtitleEntry {
	if maxWords <= 0 {
		maxWords = 12
	}
	var (
		entries []types.SubtitleEntry
		cur     []types.Word
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		texts := make([]string, len(cur))
		for i, w := range cur {
			texts[i] = strings.TrimSpace(w.Text)
		}
		entries = append(entries, types.SubtitleEntry{
			Index: len(entries) + 1,
			Start: cur[0].Start,
			End:   cur[len(cur)-1].End,
			Text:  strings.Join(texts, " "),
		})
		cur = cur[:0]
	}
	for i, w := range words {
		if len(cur) > 0 && maxGap > 0 && w.Start-cur[len(cur)-1].End > maxGap {
			flush()
		}
		cur = append(cur, w)
		last := strings.TrimSpace(w.Text)
		if len(cur) >= maxWords || strings.HasSuffix(last, ".") || strings.HasSuffix(last, "?") || strings.HasSuffix(last, "!") || i == len(words)-1 {
			flush()
		}
	}
	return entries
}
