package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anujsonawane60/my-video-pro-app/internal/pipeline"
	"github.com/anujsonawane60/my-video-pro-app/pkg/subtitle"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		outPath     string
		voiceMode   string
		subsPath    string
		srtOut      string
		noSubtitles bool
		burn        bool
		voice       voiceFlags
	)

	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Clean a video's speech, add subtitles and optionally replace the voice",
		Long: "Extract the audio of a video, transcribe it, remove fillers, noise and\n" +
			"non-speech audio, and mux the result back with subtitles.\n\n" +
			"--voice resynth re-reads the subtitles with text-to-speech; --voice convert\n" +
			"re-voices the cleaned speech. Both keep the original timing.",
		Args: exactlyOneArg("path to the source video", "videopro process talk.mp4 -o talk.clean.mp4"),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := inputFile(args[0])
			if err != nil {
				return err
			}
			output, err := outputFile(outPath)
			if err != nil {
				return err
			}
			mode, err := parseVoiceMode(voiceMode)
			if err != nil {
				return err
			}
			entries, err := readSubtitles(subsPath)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if burn {
				cfg.Media.BurnSubtitles = true
			}

			return ctx.withPipeline(cmd, func(c context.Context, p *pipeline.Pipeline) error {
				res, err := p.Process(c, pipeline.ProcessRequest{
					Video:        input,
					Output:       output,
					Subtitles:    entries,
					Voice:        mode,
					VoiceProfile: voice.profile(),
					NoSubtitles:  noSubtitles,
				})
				if err != nil {
					return err
				}
				if path := strings.TrimSpace(srtOut); path != "" && len(res.Subtitles) > 0 {
					if err := subtitle.WriteFile(path, res.Subtitles); err != nil {
						return err
					}
					fmt.Fprintf(ctx.stdout, "Wrote %s\n", path)
				}
				writeReport(ctx.stdout, res.Report)
				fmt.Fprintf(ctx.stdout, "Wrote %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Destination video file")
	cmd.Flags().StringVar(&voiceMode, "voice", "keep", "Speech track of the output: keep, resynth or convert")
	cmd.Flags().StringVar(&subsPath, "subtitles", "", "Use this SRT file instead of transcribing")
	cmd.Flags().StringVar(&srtOut, "srt-out", "", "Also write the subtitles to this SRT file")
	cmd.Flags().BoolVar(&noSubtitles, "no-subtitles", false, "Leave subtitles out of the output video")
	cmd.Flags().BoolVar(&burn, "burn-subtitles", false, "Render subtitles into the picture")
	voice.bind(cmd)
	return cmd
}

func parseVoiceMode(s string) (pipeline.VoiceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep":
		return pipeline.VoiceKeep, nil
	case string(pipeline.VoiceResynth):
		return pipeline.VoiceResynth, nil
	case string(pipeline.VoiceConvert):
		return pipeline.VoiceConvert, nil
	}
	return "", fmt.Errorf("--voice must be keep, resynth or convert, got %q", s)
}
