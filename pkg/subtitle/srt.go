// Package subtitle reads and writes SRT subtitle tracks and locates filler
// words in word-level transcripts.
package subtitle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// ErrInvalidTimestamp is returned for a timestamp not in HH:MM:SS,mmm form.
var ErrInvalidTimestamp = errors.New("subtitle: invalid timestamp")

// ParseSRT reads an SRT track. Blocks without a numeric index or a parseable
// "start --> end" line are skipped. Both "," and "." are accepted as the
// millisecond separator, and CRLF line endings are tolerated.
func ParseSRT(r io.Reader) ([]types.SubtitleEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("subtitle: read srt: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	content := strings.ReplaceAll(string(data), "\r\n", "\n")

	var (
		entries []types.SubtitleEntry
		block   []string
	)
	flush := func() {
		if e, ok := parseBlock(block); ok {
			entries = append(entries, e)
		}
		block = block[:0]
	}
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t")
		if line == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("subtitle: read srt: %w", err)
	}
	flush()
	return entries, nil
}

func parseBlock(lines []string) (types.SubtitleEntry, bool) {
	if len(lines) < 2 {
		return types.SubtitleEntry{}, false
	}
	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return types.SubtitleEntry{}, false
	}
	start, end, ok := strings.Cut(lines[1], "-->")
	if !ok {
		return types.SubtitleEntry{}, false
	}
	startSec, err := ParseTimestamp(start)
	if err != nil {
		return types.SubtitleEntry{}, false
	}
	// Some writers append positioning after the end time.
	endField := strings.Fields(end)
	if len(endField) == 0 {
		return types.SubtitleEntry{}, false
	}
	endSec, err := ParseTimestamp(endField[0])
	if err != nil {
		return types.SubtitleEntry{}, false
	}
	return types.SubtitleEntry{
		Index: index,
		Start: startSec,
		End:   endSec,
		Text:  strings.Join(lines[2:], "\n"),
	}, true
}

// ReadFile parses the SRT file at path.
func ReadFile(path string) ([]types.SubtitleEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("subtitle: %w", err)
	}
	defer f.Close()
	return ParseSRT(f)
}

// WriteSRT writes entries in SRT form. Entries are written in slice order
// with their own Index; a zero Index is replaced by the 1-based position.
func WriteSRT(w io.Writer, entries []types.SubtitleEntry) error {
	bw := bufio.NewWriter(w)
	for i, e := range entries {
		if i > 0 {
			bw.WriteString("\n")
		}
		idx := e.Index
		if idx == 0 {
			idx = i + 1
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n", idx, FormatTimestamp(e.Start), FormatTimestamp(e.End), strings.TrimRight(e.Text, "\n"))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("subtitle: write srt: %w", err)
	}
	return nil
}

// WriteFile writes entries to path as SRT.
func WriteFile(path string, entries []types.SubtitleEntry) error {
	var buf bytes.Buffer
	if err := WriteSRT(&buf, entries); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("subtitle: %w", err)
	}
	return nil
}

// ParseTimestamp converts "HH:MM:SS,mmm" (or with ".") to seconds. A
// fraction shorter than three digits is a decimal fraction: ",5" is 500 ms.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	hms, millis, ok := strings.Cut(strings.ReplaceAll(value, ".", ","), ",")
	if !ok || len(millis) == 0 || len(millis) > 3 || strings.Trim(millis, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	millis += strings.Repeat("0", 3-len(millis))
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	s, errS := strconv.Atoi(parts[2])
	ms, errMS := strconv.Atoi(millis)
	if err := errors.Join(errH, errM, errS, errMS); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}
	if h < 0 || m < 0 || m > 59 || s < 0 || s > 59 || ms < 0 || ms > 999 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidTimestamp, value)
	}
	return float64(h*3600+m*60+s) + float64(ms)/1000, nil
}

// FormatTimestamp renders seconds as "HH:MM:SS,mmm", rounding to the nearest
// millisecond. Negative input renders as zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds*1000 + 0.5)
	h := total / 3_600_000
	total %= 3_600_000
	m := total / 60_000
	total %= 60_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, total/1000, total%1000)
}
