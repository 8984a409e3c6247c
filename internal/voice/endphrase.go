package voice

import (
	"strings"
)

// EndPhraseDetector spots goodbye phrases in model transcripts. Matching
// is case-insensitive on whole words and ignores surrounding punctuation,
// so "end" matches "The end." but not "friend".
type EndPhraseDetector struct {
	phrases [][]string
}

// NewEndPhraseDetector tokenizes phrases once. Empty phrases are skipped.
func NewEndPhraseDetector(phrases []string) *EndPhraseDetector {
	d := &EndPhraseDetector{}
	for _, p := range phrases {
		if words := tokenize(p); len(words) > 0 {
			d.phrases = append(d.phrases, words)
		}
	}
	return d
}

// Match returns the first phrase found in text.
func (d *EndPhraseDetector) Match(text string) (string, bool) {
	words := tokenize(text)
	for _, phrase := range d.phrases {
		for i := 0; i+len(phrase) <= len(words); i++ {
			if equalWords(words[i:i+len(phrase)], phrase) {
				return strings.Join(phrase, " "), true
			}
		}
	}
	return "", false
}

func equalWords(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func tokenize(s string) []string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, " ,.!?;:-\"'`~()[]*"); f != "" {
			out = append(out, f)
		}
	}
	return out
}
