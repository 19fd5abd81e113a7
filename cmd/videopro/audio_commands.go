package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/anujsonawane60/my-video-pro-app/internal/pipeline"
	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/clean"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <input>",
		Short: "List the speech segments of an audio or video file",
		Args:  exactlyOneArg("path to an audio or video file", "videopro detect talk.mp4"),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := inputFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				buf, err := p.LoadAudio(c, input)
				if err != nil {
					return fmt.Errorf("load %q: %w", input, err)
				}
				res, err := p.Detect(c, buf)
				if err != nil {
					return err
				}
				if len(res.Detection.Segments) == 0 {
					fmt.Fprintln(ctx.stdout, "No speech detected.")
				} else {
					fmt.Fprintln(ctx.stdout, renderSegments(res.Detection.Segments))
				}
				writeReport(ctx.stdout, res.Report)
				return nil
			})
		},
	}
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var (
		outPath       string
		mode          string
		removeFillers bool
	)

	cmd := &cobra.Command{
		Use:   "clean <input>",
		Short: "Reduce noise and mute or cut non-speech audio",
		Long: "Reduce background noise and mute (mask) or cut (drop) everything that is not\n" +
			"speech. With --remove-fillers the audio is transcribed first so that filler\n" +
			"words such as \"um\" can be located and removed too.",
		Args: exactlyOneArg("path to an audio or video file", "videopro clean talk.wav -o talk.clean.wav"),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := inputFile(args[0])
			if err != nil {
				return err
			}
			output, err := outputFile(outPath)
			if err != nil {
				return err
			}
			m := clean.Mode(mode)
			if m != "" && m != clean.ModeMask && m != clean.ModeDrop {
				return fmt.Errorf("--mode must be %q or %q, got %q", clean.ModeMask, clean.ModeDrop, mode)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if removeFillers {
				cfg.Cleaning.RemoveFillers = true
			}

			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				buf, err := p.LoadAudio(c, input)
				if err != nil {
					return fmt.Errorf("load %q: %w", input, err)
				}
				req := pipeline.CleanRequest{Audio: buf, Mode: m}
				if cfg.Cleaning.RemoveFillers {
					tr, err := p.Transcribe(c, buf)
					switch {
					case err == nil:
						req.Words = tr.Transcript.Words
					case c.Err() != nil:
						return err
					default:
						slog.Warn("transcription failed, filler words are kept", "err", err)
					}
				}
				res, err := p.Clean(c, req)
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
	cmd.Flags().StringVar(&mode, "mode", "", "mask keeps the timeline and mutes non-speech, drop cuts it (default from config)")
	cmd.Flags().BoolVar(&removeFillers, "remove-fillers", false, "Transcribe and remove filler words")
	return cmd
}
