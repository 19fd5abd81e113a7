package subtitle

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/anujsonawane60/my-video-pro-app/pkg/types"
)

// DefaultFillers are the filler words and phrases removed by default.
var DefaultFillers = []string{"um", "uh", "hmm", "uhh", "err", "ah", "like", "you know"}

const defaultFuzzyThreshold = 0.85

// FillerOption is a functional option for FillerMatcher.
type FillerOption func(*FillerMatcher)

// WithFillers replaces the filler list. Multi-word entries match consecutive
// words.
func WithFillers(fillers ...string) FillerOption {
	return func(m *FillerMatcher) { m.setFillers(fillers) }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a word whose
// Double Metaphone code equals a filler's. Default: 0.85.
func WithFuzzyThreshold(threshold float64) FillerOption {
	return func(m *FillerMatcher) { m.fuzzyThreshold = threshold }
}

// FillerMatcher finds filler words in word-level transcripts. A word matches
// a single-word filler when its normalised form is equal to the filler, when
// collapsing repeated letters makes it equal ("ummm", "uhhhh"), or when it
// shares a Double Metaphone code with the filler and scores above the fuzzy
// threshold. Multi-word fillers require exact matches of each word.
//
// Safe for concurrent use; read-only after construction.
type FillerMatcher struct {
	single         map[string]struct{}
	singleCodes    map[string][]string
	phrases        [][]string
	fuzzyThreshold float64
}

// NewFillerMatcher returns a matcher for DefaultFillers unless overridden.
func NewFillerMatcher(opts ...FillerOption) *FillerMatcher {
	m := &FillerMatcher{fuzzyThreshold: defaultFuzzyThreshold}
	m.setFillers(DefaultFillers)
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *FillerMatcher) setFillers(fillers []string) {
	m.single = make(map[string]struct{})
	m.singleCodes = make(map[string][]string)
	m.phrases = nil
	for _, f := range fillers {
		tokens := strings.Fields(normalizeWord(f))
		switch len(tokens) {
		case 0:
		case 1:
			t := tokens[0]
			m.single[t] = struct{}{}
			m.single[collapseRepeats(t)] = struct{}{}
			p, s := matchr.DoubleMetaphone(t)
			for _, c := range []string{p, s} {
				if c != "" {
					m.singleCodes[c] = append(m.singleCodes[c], t)
				}
			}
		default:
			m.phrases = append(m.phrases, tokens)
		}
	}
}

// Find returns the time spans of filler words in words, in input order.
// Words with invalid timing are ignored. A multi-word filler yields one span
// from its first word's start to its last word's end.
func (m *FillerMatcher) Find(words []types.Word) []types.Segment {
	norm := make([]string, len(words))
	for i, w := range words {
		norm[i] = normalizeWord(w.Text)
	}

	var segs []types.Segment
	for i := 0; i < len(words); i++ {
		if n := m.matchPhrase(norm, i); n > 0 {
			seg := types.Segment{Start: words[i].Start, End: words[i+n-1].End}
			if seg.Validate() == nil {
				segs = append(segs, seg)
			}
			i += n - 1
			continue
		}
		if m.matchWord(norm[i]) {
			seg := types.Segment{Start: words[i].Start, End: words[i].End}
			if seg.Validate() == nil {
				segs = append(segs, seg)
			}
		}
	}
	return segs
}

// matchPhrase returns the length of the multi-word filler starting at i, or 0.
func (m *FillerMatcher) matchPhrase(norm []string, i int) int {
	for _, p := range m.phrases {
		if i+len(p) > len(norm) {
			continue
		}
		ok := true
		for j, tok := range p {
			if norm[i+j] != tok {
				ok = false
				break
			}
		}
		if ok {
			return len(p)
		}
	}
	return 0
}

func (m *FillerMatcher) matchWord(w string) bool {
	if w == "" {
		return false
	}
	if _, ok := m.single[w]; ok {
		return true
	}
	if _, ok := m.single[collapseRepeats(w)]; ok {
		return true
	}
	// Short words like "a" and "i" share codes with "ah" and "uh".
	if utf8.RuneCountInString(w) < 3 {
		return false
	}
	p, s := matchr.DoubleMetaphone(w)
	for _, c := range []string{p, s} {
		for _, f := range m.singleCodes[c] {
			if matchr.JaroWinkler(w, f, false) >= m.fuzzyThreshold {
				return true
			}
		}
	}
	return false
}

// FindFillers is shorthand for NewFillerMatcher(WithFillers(fillers...)).Find
// with DefaultFillers when fillers is empty.
func FindFillers(words []types.Word, fillers ...string) []types.Segment {
	if len(fillers) == 0 {
		return NewFillerMatcher().Find(words)
	}
	return NewFillerMatcher(WithFillers(fillers...)).Find(words)
}

// normalizeWord lowercases s and strips everything but letters, digits,
// apostrophes and spaces.
func normalizeWord(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// collapseRepeats squeezes runs of the same letter: "ummmm" → "um".
func collapseRepeats(s string) string {
	var (
		b    strings.Builder
		last rune = -1
	)
	for _, r := range s {
		if r != last {
			b.WriteRune(r)
		}
		last = r
	}
	return b.String()
}
