// Package media runs ffmpeg to move audio in and out of video containers.
//
// FFmpeg extracts a video's audio as 16 kHz mono PCM and muxes a finished
// job back into a video: replacement audio plus the subtitles, either as a
// soft subtitle stream or burned into the picture. Intermediate files live in
// a per-call temporary directory that is removed before returning.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/anujsonawane60/my-video-pro-app/pkg/audio"
	"github.com/anujsonawane60/my-video-pro-app/pkg/subtitle"
	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

const defaultBinary = "ffmpeg"

// ErrNoInput is returned when a required input path is empty.
var ErrNoInput = errors.New("media: input path must not be empty")

// Runner executes name with args and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
}

// Option is a functional option for FFmpeg.
type Option func(*FFmpeg)

// WithBinary sets the ffmpeg executable. Default: "ffmpeg" on $PATH.
func WithBinary(path string) Option {
	return func(f *FFmpeg) {
		if path = strings.TrimSpace(path); path != "" {
			f.binary = path
		}
	}
}

// WithWorkDir sets the parent of the per-call temporary directories.
// Default: the OS temp dir.
func WithWorkDir(dir string) Option {
	return func(f *FFmpeg) { f.workDir = dir }
}

// WithRunner replaces command execution, for tests.
func WithRunner(r Runner) Option {
	return func(f *FFmpeg) {
		if r != nil {
			f.run = r
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *FFmpeg) { f.log = l }
}

// FFmpeg drives the ffmpeg binary. It is safe for concurrent use.
type FFmpeg struct {
	binary  string
	workDir string
	run     Runner
	log     *slog.Logger
}

// New returns an FFmpeg with the given options applied.
func New(opts ...Option) *FFmpeg {
	f := &FFmpeg{binary: defaultBinary, run: execRunner, log: slog.Default()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// ExtractAudio decodes the first audio stream of video to 16 kHz mono PCM.
func (f *FFmpeg) ExtractAudio(ctx context.Context, video string) (audio.Buffer, error) {
	if strings.TrimSpace(video) == "" {
		return audio.Buffer{}, fmt.Errorf("media: extract audio: %w", ErrNoInput)
	}
	if _, err := os.Stat(video); err != nil {
		return audio.Buffer{}, fmt.Errorf("media: extract audio: %w", err)
	}
	dir, err := os.MkdirTemp(f.workDir, "videopro-extract-*")
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("media: extract audio: %w", err)
	}
	defer os.RemoveAll(dir)

	dest := filepath.Join(dir, "audio.wav")
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprint(audio.VADFormat.SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
	if err := f.exec(ctx, args); err != nil {
		return audio.Buffer{}, fmt.Errorf("media: extract audio: %w", err)
	}
	buf, err := audio.ReadWAVFile(dest)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("media: extract audio: %w", err)
	}
	f.log.DebugContext(ctx, "media: audio extracted", "video", video, "duration_s", buf.Seconds())
	return buf, nil
}

// MuxRequest describes the inputs of Mux.
type MuxRequest struct {
	// Video is the source container; its video stream is kept.
	Video string

	// Output is the destination path. Its extension selects the container.
	Output string

	// Audio replaces the source audio. When empty the source audio is
	// copied.
	Audio audio.Buffer

	// Subtitles are added to the output. None means no subtitle stream.
	Subtitles []types.SubtitleEntry

	// BurnSubtitles renders Subtitles into the picture, which re-encodes the
	// video. Otherwise they are added as a soft subtitle stream.
	BurnSubtitles bool

	// Style applies to burned subtitles.
	Style SubtitleStyle
}

// Mux writes req.Output. The output is produced under a temporary name next
// to the destination and renamed into place on success.
func (f *FFmpeg) Mux(ctx context.Context, req MuxRequest) error {
	if strings.TrimSpace(req.Video) == "" || strings.TrimSpace(req.Output) == "" {
		return fmt.Errorf("media: mux: %w", ErrNoInput)
	}
	if err := req.Style.Validate(); err != nil {
		return fmt.Errorf("media: mux: %w", err)
	}
	if _, err := os.Stat(req.Video); err != nil {
		return fmt.Errorf("media: mux: %w", err)
	}
	dir, err := os.MkdirTemp(f.workDir, "videopro-mux-*")
	if err != nil {
		return fmt.Errorf("media: mux: %w", err)
	}
	defer os.RemoveAll(dir)

	var audioPath, srtPath string
	if !req.Audio.IsEmpty() {
		audioPath = filepath.Join(dir, "audio.wav")
		if err := audio.WriteWAVFile(audioPath, req.Audio); err != nil {
			return fmt.Errorf("media: mux: %w", err)
		}
	}
	if len(req.Subtitles) > 0 {
		srtPath = filepath.Join(dir, "subtitles.srt")
		if err := subtitle.WriteFile(srtPath, req.Subtitles); err != nil {
			return fmt.Errorf("media: mux: %w", err)
		}
	}

	tmp := filepath.Join(filepath.Dir(req.Output), ".videopro-"+filepath.Base(req.Output))
	args := muxArgs(req, audioPath, srtPath, tmp)
	f.log.DebugContext(ctx, "media: muxing", "video", req.Video, "output", req.Output,
		"replace_audio", audioPath != "", "subtitles", len(req.Subtitles), "burn", req.BurnSubtitles)
	if err := f.exec(ctx, args); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("media: mux: %w", err)
	}
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("media: mux: ffmpeg produced no output: %w", err)
	}
	if err := os.Rename(tmp, req.Output); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("media: mux: %w", err)
	}
	f.log.InfoContext(ctx, "media: video written", "output", req.Output)
	return nil
}

func muxArgs(req MuxRequest, audioPath, srtPath, output string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", req.Video}
	audioInput := "0:a?"
	if audioPath != "" {
		args = append(args, "-i", audioPath)
		audioInput = "1:a"
	}
	softSubs := srtPath != "" && !req.BurnSubtitles
	if softSubs {
		args = append(args, "-i", srtPath)
	}

	args = append(args, "-map", "0:v", "-map", audioInput)
	if softSubs {
		subInput := 1
		if audioPath != "" {
			subInput = 2
		}
		args = append(args, "-map", fmt.Sprintf("%d:s", subInput), "-c:s", subtitleCodec(req.Output))
	}

	if srtPath != "" && req.BurnSubtitles {
		vf := "subtitles=" + filterPath(srtPath) + ":force_style='" + req.Style.ForceStyle() + "'"
		args = append(args, "-vf", vf, "-c:v", "libx264", "-crf", "23", "-preset", "medium")
	} else {
		args = append(args, "-c:v", "copy")
	}
	if audioPath != "" {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-c:a", "copy")
	}
	return append(args, "-shortest", output)
}

// subtitleCodec picks a soft subtitle codec the output container accepts.
func subtitleCodec(output string) string {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mkv":
		return "srt"
	case ".webm":
		return "webvtt"
	default:
		return "mov_text"
	}
}

// filterPath quotes path for use inside an ffmpeg filter graph.
func filterPath(path string) string {
	p := filepath.ToSlash(path)
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, `'`, `\'`)
	p = strings.ReplaceAll(p, `:`, `\:`)
	return "'" + p + "'"
}

// Check verifies that the ffmpeg binary can be run.
func (f *FFmpeg) Check(ctx context.Context) error {
	return f.exec(ctx, []string{"-hide_banner", "-version"})
}

func (f *FFmpeg) exec(ctx context.Context, args []string) error {
	out, err := f.run(ctx, f.binary, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
