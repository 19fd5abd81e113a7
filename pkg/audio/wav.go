package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// ReadWAV decodes a PCM WAV stream into a 16-bit Buffer. Sources with 8, 24 or
// 32-bit samples are rescaled to 16 bits.
func ReadWAV(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("audio: read wav: %w: not a valid WAV file", ErrUnsupportedFormat)
	}
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: read wav: %w", err)
	}
	if ib == nil || ib.Format == nil {
		return Buffer{}, fmt.Errorf("audio: read wav: %w: missing format chunk", ErrUnsupportedFormat)
	}

	depth := ib.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	samples := make([]int16, len(ib.Data))
	for i, v := range ib.Data {
		samples[i] = to16(v, depth)
	}

	buf := Buffer{Samples: samples, SampleRate: ib.Format.SampleRate, Channels: ib.Format.NumChannels}
	if err := buf.Validate(); err != nil {
		return Buffer{}, fmt.Errorf("audio: read wav: %w", err)
	}
	return buf, nil
}

// DecodeWAV decodes an in-memory WAV file.
func DecodeWAV(data []byte) (Buffer, error) {
	return ReadWAV(bytes.NewReader(data))
}

// ReadWAVFile opens and decodes the WAV file at path.
func ReadWAVFile(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadWAV(f)
}

// WriteWAV encodes buf as a 16-bit PCM WAV stream.
func WriteWAV(w io.WriteSeeker, buf Buffer) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("audio: write wav: %w", err)
	}
	enc := wav.NewEncoder(w, buf.SampleRate, 16, buf.Channels, wavFormatPCM)
	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		data[i] = int(s)
	}
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buf.Channels, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("audio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: write wav: close: %w", err)
	}
	return nil
}

// EncodeWAV encodes buf as an in-memory WAV file.
func EncodeWAV(buf Buffer) ([]byte, error) {
	ws := &memWriteSeeker{}
	if err := WriteWAV(ws, buf); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// WriteWAVFile encodes buf to a new WAV file at path.
func WriteWAVFile(path string, buf Buffer) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("audio: close %s: %w", path, cerr)
		}
	}()
	return WriteWAV(f, buf)
}

func to16(v, depth int) int16 {
	switch depth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

// memWriteSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("audio: seek: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: seek: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
