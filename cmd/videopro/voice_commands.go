package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anujsonawane60/my-video-pro-app/internal/pipeline"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/subtitle"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		outPath  string
		language string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <input>",
		Short: "Transcribe an audio or video file into SRT subtitles",
		Args:  exactlyOneArg("path to an audio or video file", "videopro transcribe talk.mp4 -o talk.srt"),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := inputFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if lang := strings.TrimSpace(language); lang != "" {
				cfg.Transcription.Language = lang
			}

			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				buf, err := p.LoadAudio(c, input)
				if err != nil {
					return fmt.Errorf("load %q: %w", input, err)
				}
				res, err := p.Transcribe(c, buf)
				if err != nil {
					return err
				}
				if strings.TrimSpace(outPath) == "" {
					return subtitle.WriteSRT(ctx.stdout, res.Transcript.Entries)
				}
				output, err := outputFile(outPath)
				if err != nil {
					return err
				}
				if err := subtitle.WriteFile(output, res.Transcript.Entries); err != nil {
					return err
				}
				writeReport(ctx.stdout, res.Report)
				fmt.Fprintf(ctx.stdout, "Wrote %d entries to %s\n", len(res.Transcript.Entries), output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Destination SRT file (stdout when omitted)")
	cmd.Flags().StringVar(&language, "language", "", "ISO-639-1 language code (detected when omitted)")
	return cmd
}

// voiceFlags selects a voice on the command line. Unset flags keep the
// configured voice.
type voiceFlags struct {
	id       string
	provider string
}

func (v *voiceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.id, "voice-id", "", "Voice to synthesize with (default from config)")
	cmd.Flags().StringVar(&v.provider, "voice-provider", "", "TTS backend the voice belongs to")
}

func (v *voiceFlags) profile() types.VoiceProfile {
	return types.VoiceProfile{ID: strings.TrimSpace(v.id), Provider: strings.TrimSpace(v.provider)}
}

func newResynthCommand(ctx *commandContext) *cobra.Command {
	var (
		outPath string
		verbose bool
		voice   voiceFlags
	)

	cmd := &cobra.Command{
		Use:   "resynth <subtitles.srt>",
		Short: "Synthesize speech from subtitles, fitting each line to its time slot",
		Args:  exactlyOneArg("path to an SRT file", "videopro resynth talk.srt -o voice.wav"),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := inputFile(args[0])
			if err != nil {
				return err
			}
			output, err := outputFile(outPath)
			if err != nil {
				return err
			}
			entries, err := subtitle.ReadFile(input)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("%s has no subtitle entries", input)
			}

			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				res, err := p.Resynthesize(c, entries, voice.profile())
				if err != nil {
					return err
				}
				if err := audio.WriteWAVFile(output, res.Audio); err != nil {
					return fmt.Errorf("write %q: %w", output, err)
				}
				if verbose {
					fmt.Fprintln(ctx.stdout, renderAdjustments(res.Adjustments))
				}
				writeReport(ctx.stdout, res.Report)
				fmt.Fprintf(ctx.stdout, "Wrote %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Destination WAV file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List the fitting of every entry")
	voice.bind(cmd)
	return cmd
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		outPath string
		voice   voiceFlags
	)

	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Re-voice recorded speech, keeping its timing",
		Args:  exactlyOneArg("path to an audio or video file", "videopro convert talk.wav -o revoiced.wav"),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := inputFile(args[0])
			if err != nil {
				return err
			}
			output, err := outputFile(outPath)
			if err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				buf, err := p.LoadAudio(c, input)
				if err != nil {
					return fmt.Errorf("load %q: %w", input, err)
				}
				res, err := p.ConvertVoice(c, buf, voice.profile())
				if err != nil {
					return err
				}
				if err := audio.WriteWAVFile(output, res.Audio); err != nil {
					return fmt.Errorf("write %q: %w", output, err)
				}
				writeReport(ctx.stdout, res.Report)
				fmt.Fprintf(ctx.stdout, "Wrote %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Destination WAV file")
	voice.bind(cmd)
	return cmd
}

// readSubtitles loads an optional SRT file; an empty path yields nil.
func readSubtitles(path string) ([]types.SubtitleEntry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	abs, err := inputFile(path)
	if err != nil {
		return nil, err
	}
	entries, err := subtitle.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		slog.Warn("subtitle file has no entries", "path", path)
	}
	return entries, nil
}
