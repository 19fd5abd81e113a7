package audio

import (
	"fmt"
	"slices"

	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// span is a half-open frame range [from, to).
type span struct{ from, to int }

// MergeSegments returns segs sorted by start with overlapping or touching
// segments combined. The result is sorted, pairwise disjoint, and covers
// exactly the union of the input. segs is not modified.
func MergeSegments(segs []types.Segment) []types.Segment {
	if len(segs) == 0 {
		return nil
	}
	sorted := slices.Clone(segs)
	slices.SortFunc(sorted, func(a, b types.Segment) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})

	merged := []types.Segment{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			last.End = max(last.End, s.End)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// ValidateSegments returns an error wrapping ErrInvalidSegment for the first
// segment with a negative or non-finite bound or End ≤ Start.
func ValidateSegments(segs []types.Segment) error {
	for i, s := range segs {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%w: #%d: %v", ErrInvalidSegment, i, err)
		}
	}
	return nil
}

// spans validates and merges segs and maps them to frame ranges of buf.
func spans(buf Buffer, segs []types.Segment) ([]span, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSegments(segs); err != nil {
		return nil, err
	}
	merged := MergeSegments(segs)
	out := make([]span, 0, len(merged))
	for _, s := range merged {
		from, to := buf.FrameAt(s.Start), buf.FrameAt(s.End)
		if to > from {
			out = append(out, span{from, to})
		}
	}
	return out, nil
}

// KeepOnly returns the concatenation of the regions of buf covered by segs.
// Segments are merged first, so overlapping input never duplicates audio. An
// empty segment list yields an empty buffer in buf's format.
func KeepOnly(buf Buffer, segs []types.Segment) (Buffer, error) {
	sp, err := spans(buf, segs)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: keep only: %w", err)
	}
	parts := make([]Buffer, len(sp))
	for i, s := range sp {
		parts[i] = buf.Slice(s.from, s.to)
	}
	return concat(buf.Format(), parts), nil
}

// RemoveSegments returns buf with the regions covered by segs cut out and the
// remaining gaps joined. With no segments the input is returned unchanged.
func RemoveSegments(buf Buffer, segs []types.Segment) (Buffer, error) {
	if len(segs) == 0 {
		return buf, nil
	}
	sp, err := spans(buf, segs)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: remove segments: %w", err)
	}
	parts := make([]Buffer, 0, len(sp)+1)
	prev := 0
	for _, s := range sp {
		if s.from > prev {
			parts = append(parts, buf.Slice(prev, s.from))
		}
		prev = s.to
	}
	if prev < buf.Frames() {
		parts = append(parts, buf.Slice(prev, buf.Frames()))
	}
	return concat(buf.Format(), parts), nil
}

// Mask returns a copy of buf of identical length in which every sample
// outside segs is zeroed. An empty segment list yields a silent buffer.
func Mask(buf Buffer, segs []types.Segment) (Buffer, error) {
	sp, err := spans(buf, segs)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: mask: %w", err)
	}
	out := Silence(buf.Format(), buf.Frames())
	for _, s := range sp {
		lo, hi := s.from*buf.Channels, s.to*buf.Channels
		copy(out.Samples[lo:hi], buf.Samples[lo:hi])
	}
	return out, nil
}

// Mute returns a copy of buf of identical length with the regions covered
// by segs zeroed. It is the complement of Mask and keeps the track aligned
// with video, unlike RemoveSegments.
func Mute(buf Buffer, segs []types.Segment) (Buffer, error) {
	sp, err := spans(buf, segs)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: mute: %w", err)
	}
	out := buf.Clone()
	for _, s := range sp {
		clear(out.Samples[s.from*buf.Channels : s.to*buf.Channels])
	}
	return out, nil
}

// Concat joins buffers end to end. All buffers must share one format; empty
// buffers are skipped when checking.
func Concat(bufs ...Buffer) (Buffer, error) {
	var f Format
	for _, b := range bufs {
		if b.IsEmpty() {
			continue
		}
		if f == (Format{}) {
			f = b.Format()
			continue
		}
		if b.Format() != f {
			return Buffer{}, fmt.Errorf("audio: concat: %w: %s and %s", ErrUnsupportedFormat, f, b.Format())
		}
	}
	if f == (Format{}) && len(bufs) > 0 {
		f = bufs[0].Format()
	}
	return concat(f, bufs), nil
}

func concat(f Format, parts []Buffer) Buffer {
	total := 0
	for _, p := range parts {
		total += len(p.Samples)
	}
	out := make([]int16, 0, total)
	for _, p := range parts {
		out = append(out, p.Samples...)
	}
	return Buffer{Samples: out, SampleRate: f.SampleRate, Channels: f.Channels}
}

// Overlay mixes src into a copy of dst starting at frame offset at. Samples
// are summed with int16 saturation; anything past the end of dst is dropped.
// src must share dst's format.
func Overlay(dst, src Buffer, at int) (Buffer, error) {
	if dst.Format() != src.Format() {
		return Buffer{}, fmt.Errorf("audio: overlay: %w: %s onto %s", ErrUnsupportedFormat, src.Format(), dst.Format())
	}
	out := dst.Clone()
	overlayInPlace(out, src, at)
	return out, nil
}

// overlayInPlace mixes src into dst at frame offset at and returns the number
// of src frames that did not fit.
func overlayInPlace(dst, src Buffer, at int) int {
	if at < 0 {
		at = 0
	}
	ch := dst.Channels
	avail := dst.Frames() - at
	if avail <= 0 {
		return src.Frames()
	}
	n := min(src.Frames(), avail)
	base := at * ch
	for i := range n * ch {
		dst.Samples[base+i] = clip16(int32(dst.Samples[base+i]) + int32(src.Samples[i]))
	}
	return src.Frames() - n
}

// MixAt is the allocation-free form of Overlay for callers that own dst. It
// reports how many frames of src were truncated.
func MixAt(dst, src Buffer, at int) (truncated int, err error) {
	if dst.Format() != src.Format() {
		return 0, fmt.Errorf("audio: mix: %w: %s onto %s", ErrUnsupportedFormat, src.Format(), dst.Format())
	}
	return overlayInPlace(dst, src, at), nil
}

// Pad surrounds buf with before and after frames of silence.
func Pad(buf Buffer, before, after int) Buffer {
	f := buf.Format()
	return concat(f, []Buffer{Silence(f, before), buf, Silence(f, after)})
}
