// Package chunker splits long knowledge content into segments no longer
// than a configured ceiling, preferring paragraph, then sentence, then word
// boundaries.
package chunker

import (
	"strings"
	"unicode"
)

// DefaultMaxChars is the default segment ceiling in runes.
const DefaultMaxChars = 800

// Chunker splits text. The zero value uses DefaultMaxChars.
type Chunker struct {
	// MaxChars is the segment ceiling in runes.
	MaxChars int
	// Lookback bounds how far before the ceiling a boundary is searched for.
	// Zero means MaxChars/2.
	Lookback int
}

// New returns a Chunker with the given ceiling and lookback.
func New(maxChars, lookback int) Chunker {
	return Chunker{MaxChars: maxChars, Lookback: lookback}
}

func (c Chunker) limits() (max, lookback int) {
	max = c.MaxChars
	if max <= 0 {
		max = DefaultMaxChars
	}
	lookback = c.Lookback
	if lookback <= 0 || lookback >= max {
		lookback = max / 2
	}
	return max, lookback
}

// Split returns the trimmed, non-empty segments of text in order. Each
// segment has at most MaxChars runes. Joining the segments reproduces the
// input apart from whitespace at the cut points.
func (c Chunker) Split(text string) []string {
	max, lookback := c.limits()
	r := []rune(strings.TrimSpace(text))

	var out []string
	for len(r) > 0 {
		if len(r) <= max {
			out = append(out, string(r))
			break
		}
		cut := cutPoint(r, max, lookback)
		if seg := strings.TrimSpace(string(r[:cut])); seg != "" {
			out = append(out, seg)
		}
		r = trimLeftSpace(r[cut:])
	}
	return out
}

// cutPoint returns the exclusive end of the next segment. len(r) > max.
func cutPoint(r []rune, max, lookback int) int {
	lo := max - lookback
	if lo < 1 {
		lo = 1
	}

	// Paragraph: a blank line starting at j.
	for j := max; j >= lo; j-- {
		if r[j] == '\n' && j+1 < len(r) && isBlankLineAfter(r, j) {
			return j
		}
	}
	// Sentence: terminal punctuation followed by whitespace.
	for j := max - 1; j >= lo-1 && j >= 0; j-- {
		if isSentenceEnd(r[j]) && unicode.IsSpace(r[j+1]) {
			return j + 1
		}
	}
	// Word: any whitespace.
	for j := max; j >= lo; j-- {
		if unicode.IsSpace(r[j]) {
			return j
		}
	}
	return max
}

// isBlankLineAfter reports whether the newline at j is followed by only
// horizontal whitespace and another newline.
func isBlankLineAfter(r []rune, j int) bool {
	for k := j + 1; k < len(r); k++ {
		switch r[k] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return false
}

func isSentenceEnd(ch rune) bool {
	return ch == '.' || ch == '!' || ch == '?'
}

func trimLeftSpace(r []rune) []rune {
	i := 0
	for i < len(r) && unicode.IsSpace(r[i]) {
		i++
	}
	return r[i:]
}
