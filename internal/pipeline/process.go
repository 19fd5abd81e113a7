package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anujsonawane60/my-video-pro-app/internal/media"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/clean"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ErrInvalidRequest is returned for a malformed ProcessRequest.
var ErrInvalidRequest = errors.New("pipeline: invalid request")

var errNoSubtitles = errors.New("no subtitles to resynthesize")

// VoiceMode selects what replaces the cleaned speech in a processed video.
type VoiceMode string

const (
	// VoiceKeep keeps the cleaned original speech.
	VoiceKeep VoiceMode = ""

	// VoiceResynth re-synthesizes speech from the subtitles with TTS.
	VoiceResynth VoiceMode = "resynth"

	// VoiceConvert re-voices the cleaned speech with speech-to-speech.
	VoiceConvert VoiceMode = "convert"
)

// ProcessRequest is the input of Process.
type ProcessRequest struct {
	// Video is the source file; Output the destination.
	Video  string
	Output string

	// Subtitles, when set, are used instead of transcribing.
	Subtitles []types.SubtitleEntry

	// Voice selects the speech track of the output.
	Voice VoiceMode

	// VoiceProfile overrides the configured voice.
	VoiceProfile types.VoiceProfile

	// NoSubtitles leaves subtitles out of the output.
	NoSubtitles bool
}

func (r ProcessRequest) validate() error {
	var errs []error
	if strings.TrimSpace(r.Video) == "" {
		errs = append(errs, errors.New("video path is required"))
	}
	if strings.TrimSpace(r.Output) == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	switch r.Voice {
	case VoiceKeep, VoiceResynth, VoiceConvert:
	default:
		errs = append(errs, fmt.Errorf("unknown voice mode %q", r.Voice))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
}

// ProcessResult is the outcome of Process.
type ProcessResult struct {
	Report Report

	// Transcript is empty when subtitles were supplied or transcription
	// failed.
	Transcript types.Transcript

	// Subtitles are the entries written to the output.
	Subtitles []types.SubtitleEntry
}

// Process runs the full video job: extract the audio, transcribe it, remove
// fillers and noise, optionally replace the voice, and mux the result with
// subtitles into req.Output.
//
// Non-speech audio is always muted rather than cut so the track stays in sync
// with the picture. A failed transcription is soft: the job continues without
// subtitles, filler removal or resynthesis.
func (p *Pipeline) Process(ctx context.Context, req ProcessRequest) (res ProcessResult, err error) {
	if err := req.validate(); err != nil {
		return ProcessResult{}, err
	}
	ctx, j := p.startJob(ctx, "process")
	defer func() { j.finish(ctx, err) }()

	var buf audio.Buffer
	err = j.stage(ctx, StageExtract, func(ctx context.Context) error {
		var err error
		buf, err = p.media.ExtractAudio(ctx, req.Video)
		return err
	})
	if err != nil {
		return ProcessResult{}, err
	}
	j.report.InputSeconds = buf.Seconds()

	var tr types.Transcript
	entries := req.Subtitles
	if len(entries) == 0 {
		tr, err = p.transcribe(ctx, j, buf)
		if err != nil {
			if ctx.Err() != nil {
				return ProcessResult{}, err
			}
			j.warn(ctx, StageTranscribe, WarnTranscription, errors.Unwrap(err))
			err = nil
		}
		entries = tr.Entries
	}

	if p.cfg.Cleaning.Params().Mode == clean.ModeDrop {
		j.log.InfoContext(ctx, "video jobs mute non-speech audio, ignoring drop mode")
	}
	speech, _, _, err := p.clean(ctx, j, buf, tr.Words, clean.ModeMask)
	if err != nil {
		return ProcessResult{}, err
	}

	final := speech
	switch req.Voice {
	case VoiceResynth:
		if len(entries) == 0 {
			j.warn(ctx, StageResynth, WarnNoSubtitles, errNoSubtitles)
			break
		}
		out, _, err := p.resynthesize(ctx, j, entries, req.VoiceProfile)
		if err != nil {
			return ProcessResult{}, err
		}
		final = fitLength(audio.Normalize(out, speech.Format()), speech.Frames())
	case VoiceConvert:
		out, err := p.convertVoice(ctx, j, speech, req.VoiceProfile)
		switch {
		case err == nil:
			final = out
		case ctx.Err() != nil:
			return ProcessResult{}, err
		case errors.Is(err, ErrNotConfigured):
			j.warn(ctx, StageVoice, WarnVoiceUnsupported, errors.Unwrap(err))
		default:
			j.warn(ctx, StageVoice, WarnVoiceConversion, errors.Unwrap(err))
		}
	}

	subs := entries
	if req.NoSubtitles {
		subs = nil
	}
	err = j.stage(ctx, StageMux, func(ctx context.Context) error {
		return p.media.Mux(ctx, media.MuxRequest{
			Video:         req.Video,
			Output:        req.Output,
			Audio:         final,
			Subtitles:     subs,
			BurnSubtitles: p.cfg.Media.BurnSubtitles,
			Style:         p.cfg.Media.SubtitleStyle,
		})
	})
	if err != nil {
		return ProcessResult{}, err
	}

	j.report.Entries = len(entries)
	j.report.OutputSeconds = final.Seconds()
	return ProcessResult{Report: j.report, Transcript: tr, Subtitles: subs}, nil
}
