package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/clean"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/stt"
	"github.com/anujsonawane60/my-video-pro-app/pkg/provider/tts"
	"github.com/anujsonawane60/my-video-pro-app/pkg/resynth"
	"github.com/anujsonawane60/my-video-pro-app/pkg/subtitle"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

var errNoWordTiming = errors.New("transcript has no word timing")

// DetectResult is the outcome of Detect.
type DetectResult struct {
	Report    Report
	Detection clean.Detection
}

// Detect runs noise reduction and speech detection on buf without editing
// it.
func (p *Pipeline) Detect(ctx context.Context, buf audio.Buffer) (res DetectResult, err error) {
	ctx, j := p.startJob(ctx, "detect")
	defer func() { j.finish(ctx, err) }()

	j.report.InputSeconds = buf.Seconds()
	var det clean.Detection
	err = j.stage(ctx, StageClean, func(ctx context.Context) error {
		var err error
		det, err = p.cleaner.DetectSpeech(ctx, buf, p.cfg.Cleaning.Params())
		if err != nil {
			return err
		}
		j.recordDetection(ctx, det)
		return nil
	})
	if err != nil {
		return DetectResult{}, err
	}
	j.report.OutputSeconds = det.Audio.Seconds()
	return DetectResult{Report: j.report, Detection: det}, nil
}

// CleanRequest is the input of Clean.
type CleanRequest struct {
	Audio audio.Buffer

	// Words, when set and cleaning.remove_fillers is on, locate the filler
	// words to cut.
	Words []types.Word

	// Mode overrides cleaning.mode when set.
	Mode clean.Mode
}

// CleanResult is the outcome of Clean.
type CleanResult struct {
	Report Report

	// Audio is the cleaned 16 kHz mono signal.
	Audio audio.Buffer

	// Segments are the kept speech spans, relative to the filler-free input.
	Segments []types.Segment

	// Fillers are the filler spans removed from the input.
	Fillers []types.Segment
}

// Clean removes fillers (when configured and word timing is given), reduces
// noise and mutes or drops non-speech audio.
func (p *Pipeline) Clean(ctx context.Context, req CleanRequest) (res CleanResult, err error) {
	ctx, j := p.startJob(ctx, "clean")
	defer func() { j.finish(ctx, err) }()

	j.report.InputSeconds = req.Audio.Seconds()
	mode := req.Mode
	if mode == "" {
		mode = p.cfg.Cleaning.Params().Mode
	}
	out, segs, fillers, err := p.clean(ctx, j, req.Audio, req.Words, mode)
	if err != nil {
		return CleanResult{}, err
	}
	j.report.OutputSeconds = out.Seconds()
	return CleanResult{Report: j.report, Audio: out, Segments: segs, Fillers: fillers}, nil
}

// clean runs the fillers and clean stages.
func (p *Pipeline) clean(ctx context.Context, j *job, buf audio.Buffer, words []types.Word, mode clean.Mode) (audio.Buffer, []types.Segment, []types.Segment, error) {
	var fillers []types.Segment
	if p.cfg.Cleaning.RemoveFillers {
		err := j.stage(ctx, StageFillers, func(ctx context.Context) error {
			if len(words) == 0 {
				j.warn(ctx, StageFillers, WarnNoWordTiming, errNoWordTiming)
				return nil
			}
			fillers = subtitle.FindFillers(words, p.cfg.Cleaning.Fillers...)
			if len(fillers) == 0 {
				return nil
			}
			var err error
			if mode == clean.ModeDrop {
				buf, err = audio.RemoveSegments(buf, fillers)
			} else {
				buf, err = audio.Mute(buf, fillers)
			}
			if err != nil {
				return err
			}
			j.report.FillersRemoved = len(fillers)
			j.report.SecondsRemoved += covered(audio.MergeSegments(fillers), math.Inf(1))
			j.log.InfoContext(ctx, "fillers removed", "count", len(fillers), "mode", string(mode))
			return nil
		})
		if err != nil {
			return audio.Buffer{}, nil, nil, err
		}
	}

	params := p.cfg.Cleaning.Params()
	params.Mode = mode
	var res clean.Result
	err := j.stage(ctx, StageClean, func(ctx context.Context) error {
		var err error
		res, err = p.cleaner.Clean(ctx, buf, params)
		if err != nil {
			return err
		}
		j.recordDetection(ctx, res.Detection)
		return nil
	})
	if err != nil {
		return audio.Buffer{}, nil, nil, err
	}
	j.report.SecondsRemoved += max(res.Audio.Seconds()-j.report.SpeechSeconds, 0)
	return res.Cleaned, res.Segments, fillers, nil
}

func (j *job) recordDetection(ctx context.Context, det clean.Detection) {
	for _, w := range det.Warnings {
		j.warn(ctx, StageClean, warningKind(w), w)
	}
	if det.Flags != nil {
		speech := det.SpeechFrames()
		j.p.metrics.RecordVADFrames(ctx, speech, len(det.Flags)-speech)
	}
	j.p.metrics.RecordSegments(ctx, len(det.Segments))
	j.report.SegmentsKept = len(det.Segments)
	j.report.SpeechSeconds = covered(det.Segments, det.Audio.Seconds())
}

// covered returns the time inside total covered by segs, which must already
// be merged.
func covered(segs []types.Segment, total float64) float64 {
	var sum float64
	for _, s := range segs {
		if end := min(s.End, total); end > s.Start {
			sum += end - max(s.Start, 0)
		}
	}
	return sum
}

// TranscribeResult is the outcome of Transcribe.
type TranscribeResult struct {
	Report     Report
	Transcript types.Transcript
}

// Transcribe transcribes buf in chunks with the configured STT chain.
func (p *Pipeline) Transcribe(ctx context.Context, buf audio.Buffer) (res TranscribeResult, err error) {
	ctx, j := p.startJob(ctx, "transcribe")
	defer func() { j.finish(ctx, err) }()

	j.report.InputSeconds = buf.Seconds()
	tr, err := p.transcribe(ctx, j, buf)
	if err != nil {
		return TranscribeResult{}, err
	}
	return TranscribeResult{Report: j.report, Transcript: tr}, nil
}

func (p *Pipeline) transcribe(ctx context.Context, j *job, buf audio.Buffer) (types.Transcript, error) {
	var tr types.Transcript
	err := j.stage(ctx, StageTranscribe, func(ctx context.Context) error {
		if p.providers.STT == nil {
			return fmt.Errorf("%w: stt", ErrNotConfigured)
		}
		if buf.IsEmpty() {
			return audio.ErrEmptyBuffer
		}
		cfg := p.cfg.Transcription.STTConfig(p.cfg.Cleaning.RemoveFillers)
		var err error
		tr, err = stt.TranscribeChunked(ctx, p.providers.STT, buf, cfg, p.cfg.Transcription.ChunkOptions())
		if err != nil {
			return err
		}
		j.report.Entries = len(tr.Entries)
		j.log.InfoContext(ctx, "transcribed", "entries", len(tr.Entries), "words", len(tr.Words), "language", tr.Language)
		return nil
	})
	return tr, err
}

// ResynthResult is the outcome of Resynthesize.
type ResynthResult struct {
	Report      Report
	Audio       audio.Buffer
	Adjustments []resynth.EntryAdjustment
}

// Resynthesize renders entries with voice and fits every clip to its
// subtitle window. A voice without an ID selects the configured one. Entries
// whose synthesis fails are left silent and reported as warnings.
func (p *Pipeline) Resynthesize(ctx context.Context, entries []types.SubtitleEntry, voice types.VoiceProfile) (res ResynthResult, err error) {
	ctx, j := p.startJob(ctx, "resynth")
	defer func() { j.finish(ctx, err) }()

	out, adj, err := p.resynthesize(ctx, j, entries, voice)
	if err != nil {
		return ResynthResult{}, err
	}
	j.report.OutputSeconds = out.Seconds()
	return ResynthResult{Report: j.report, Audio: out, Adjustments: adj}, nil
}

func (p *Pipeline) resynthesize(ctx context.Context, j *job, entries []types.SubtitleEntry, voice types.VoiceProfile) (audio.Buffer, []resynth.EntryAdjustment, error) {
	if voice.ID == "" {
		voice = p.cfg.Voice.Profile()
	}
	var res resynth.Result
	err := j.stage(ctx, StageResynth, func(ctx context.Context) error {
		if p.providers.TTS == nil {
			return fmt.Errorf("%w: tts", ErrNotConfigured)
		}
		r := resynth.New(p.providers.TTS,
			resynth.WithOptions(p.cfg.Resynth.Options()),
			resynth.WithConcurrency(p.cfg.Resynth.Concurrency),
			resynth.WithSampleRate(p.cfg.Resynth.SampleRate),
			resynth.WithLogger(j.log),
		)
		var err error
		res, err = r.Run(ctx, entries, voice)
		return err
	})
	if err != nil {
		return audio.Buffer{}, nil, err
	}

	j.report.Entries = len(entries)
	j.report.Skipped = res.Skipped
	j.report.Adjustments = make(map[resynth.Action]int)
	for _, a := range res.Adjustments {
		j.report.Adjustments[a.Action]++
		p.metrics.RecordResynthEntry(ctx, string(a.Action))
	}
	for _, s := range res.Skipped {
		p.metrics.RecordResynthEntry(ctx, "skipped")
		j.warn(ctx, StageResynth, WarnEntrySkipped, fmt.Errorf("entry %d: %w", s.Index, s.Err))
	}
	return res.Audio, res.Adjustments, nil
}

// ConvertResult is the outcome of ConvertVoice.
type ConvertResult struct {
	Report Report
	Audio  audio.Buffer
}

// ConvertVoice re-voices speech with voice, keeping its timing. A voice
// without an ID selects the configured one. The TTS provider must implement
// tts.VoiceConverter.
func (p *Pipeline) ConvertVoice(ctx context.Context, speech audio.Buffer, voice types.VoiceProfile) (res ConvertResult, err error) {
	ctx, j := p.startJob(ctx, "convert")
	defer func() { j.finish(ctx, err) }()

	j.report.InputSeconds = speech.Seconds()
	out, err := p.convertVoice(ctx, j, speech, voice)
	if err != nil {
		return ConvertResult{}, err
	}
	j.report.OutputSeconds = out.Seconds()
	return ConvertResult{Report: j.report, Audio: out}, nil
}

func (p *Pipeline) convertVoice(ctx context.Context, j *job, speech audio.Buffer, voice types.VoiceProfile) (audio.Buffer, error) {
	if voice.ID == "" {
		voice = p.cfg.Voice.Profile()
	}
	var out audio.Buffer
	err := j.stage(ctx, StageVoice, func(ctx context.Context) error {
		vc, ok := p.providers.TTS.(tts.VoiceConverter)
		if !ok {
			return fmt.Errorf("%w: voice conversion", ErrNotConfigured)
		}
		if speech.IsEmpty() {
			return audio.ErrEmptyBuffer
		}
		converted, err := vc.ConvertVoice(ctx, speech, voice)
		if err != nil {
			return err
		}
		// Converters may return another rate or a slightly different length;
		// the result must stay aligned with the source.
		out = fitLength(audio.Normalize(converted, speech.Format()), speech.Frames())
		return nil
	})
	return out, err
}

// fitLength pads or trims buf to exactly frames.
func fitLength(buf audio.Buffer, frames int) audio.Buffer {
	switch n := buf.Frames(); {
	case n < frames:
		return audio.Pad(buf, 0, frames-n)
	case n > frames:
		return buf.Slice(0, frames)
	}
	return buf
}
