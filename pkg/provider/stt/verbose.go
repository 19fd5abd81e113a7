package stt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// VerboseResponse is the verbose_json transcription body shared by
// whisper-server and the OpenAI transcription API.
type VerboseResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []VerboseSegment `json:"segments"`
	Words    []VerboseWord    `json:"words"`
}

// VerboseSegment is one decoded segment. Some servers nest word timing here.
type VerboseSegment struct {
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Text  string        `json:"text"`
	Words []VerboseWord `json:"words"`
}

// VerboseWord is one timed word.
type VerboseWord struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// ParseVerbose converts a verbose_json body into a transcript. With words
// requested, word timing is collected from the segments or from the top
// level, whichever the server filled in. Responses with words but no
// segments get entries grouped from the words.
func ParseVerbose(data []byte, words bool) (types.Transcript, error) {
	var vr VerboseResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return types.Transcript{}, fmt.Errorf("stt: parse verbose response: %w", err)
	}
	tr := types.Transcript{Text: strings.TrimSpace(vr.Text), Language: vr.Language}
	var all []types.Word
	for _, s := range vr.Segments {
		all = appendWords(all, s.Words)
		text := strings.TrimSpace(s.Text)
		if text == "" || s.End <= s.Start {
			continue
		}
		tr.Entries = append(tr.Entries, types.SubtitleEntry{
			Index: len(tr.Entries) + 1,
			Start: s.Start,
			End:   s.End,
			Text:  text,
		})
	}
	if len(all) == 0 {
		all = appendWords(all, vr.Words)
	}
	if len(tr.Entries) == 0 && len(all) > 0 {
		tr.Entries = EntriesFromWords(all, 0, 1.0)
	}
	if words {
		tr.Words = all
	}
	if tr.Text == "" && len(tr.Entries) == 0 {
		return tr, ErrNoSpeech
	}
	return tr, nil
}

func appendWords(dst []types.Word, src []VerboseWord) []types.Word {
	for _, w := range src {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		dst = append(dst, types.Word{Text: text, Start: w.Start, End: w.End, Confidence: w.Probability})
	}
	return dst
}
