package chunker

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"
)

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func assertRoundTrip(t *testing.T, c Chunker, text string) []string {
	t.Helper()
	chunks := c.Split(text)
	max, _ := c.limits()
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch); n > max {
			t.Errorf("chunk %d has %d runes, ceiling is %d", i, n, max)
		}
		if ch != strings.TrimSpace(ch) || ch == "" {
			t.Errorf("chunk %d is not trimmed or is empty: %q", i, ch)
		}
	}
	if got, want := stripSpace(strings.Join(chunks, "")), stripSpace(text); got != want {
		t.Errorf("concatenation lost content:\n got %q\nwant %q", got, want)
	}
	return chunks
}

func TestSplit_Short(t *testing.T) {
	chunks := Chunker{}.Split("  a short fact  ")
	if len(chunks) != 1 || chunks[0] != "a short fact" {
		t.Errorf("expected one trimmed chunk, got %q", chunks)
	}
}

func TestSplit_Empty(t *testing.T) {
	if chunks := (Chunker{}).Split(" \n\t "); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %q", chunks)
	}
}

func TestSplit_PrefersParagraph(t *testing.T) {
	c := New(40, 0)
	text := "First paragraph. It has two.\n\nSecond paragraph is right here."
	chunks := assertRoundTrip(t, c, text)
	if len(chunks) != 2 || chunks[0] != "First paragraph. It has two." {
		t.Errorf("expected a paragraph cut, got %q", chunks)
	}
}

func TestSplit_FallsBackToSentence(t *testing.T) {
	c := New(30, 0)
	text := "One two three four. Five six seven eight nine ten."
	chunks := assertRoundTrip(t, c, text)
	if chunks[0] != "One two three four." {
		t.Errorf("expected a sentence cut, got %q", chunks)
	}
}

func TestSplit_FallsBackToWhitespace(t *testing.T) {
	c := New(20, 0)
	text := "alpha beta gamma delta epsilon zeta eta theta"
	chunks := assertRoundTrip(t, c, text)
	for _, ch := range chunks {
		if strings.HasPrefix(ch, "lpha") || strings.HasSuffix(ch, "alph") {
			t.Errorf("word split inside a token: %q", chunks)
		}
	}
}

func TestSplit_HardCut(t *testing.T) {
	c := New(10, 0)
	text := strings.Repeat("x", 35)
	chunks := assertRoundTrip(t, c, text)
	if len(chunks) != 4 || len(chunks[0]) != 10 || len(chunks[3]) != 5 {
		t.Errorf("expected hard cuts of 10, got %q", chunks)
	}
}

func TestSplit_LookbackBoundsSearch(t *testing.T) {
	// The only space is far before the ceiling; with a short lookback the
	// chunker hard-cuts instead of producing a tiny first segment.
	c := New(20, 3)
	text := "ab " + strings.Repeat("y", 30)
	chunks := assertRoundTrip(t, c, text)
	if chunks[0] == "ab" {
		t.Errorf("boundary outside lookback should be ignored, got %q", chunks)
	}
}

func TestSplit_Multibyte(t *testing.T) {
	c := New(8, 0)
	text := strings.Repeat("日本語 ", 10)
	assertRoundTrip(t, c, text)
}

func TestSplit_1600Chars(t *testing.T) {
	sentence := "Memvault stores durable facts for agents and retrieves them by meaning. "
	text := strings.Repeat(sentence, 1600/len(sentence)+1)[:1600]

	chunks := assertRoundTrip(t, Chunker{}, text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(ch, ".") {
			t.Errorf("chunk %d should end at a sentence boundary: %q", i, ch[len(ch)-20:])
		}
	}
}

func TestSplit_ExactlyTwoSegments(t *testing.T) {
	text := strings.Repeat("a", 799) + " " + strings.Repeat("b", 800)

	chunks := assertRoundTrip(t, Chunker{}, text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != strings.Repeat("a", 799) || chunks[1] != strings.Repeat("b", 800) {
		t.Errorf("chunks should split at the single space, got lengths %d and %d", len(chunks[0]), len(chunks[1]))
	}
}

func FuzzSplit(f *testing.F) {
	f.Add("Hello world. This is a test.\n\nNew paragraph!", 12, 0)
	f.Add(strings.Repeat("z", 100), 7, 2)
	f.Fuzz(func(t *testing.T, text string, max, lookback int) {
		if max < 1 || max > 500 || !utf8.ValidString(text) {
			t.Skip()
		}
		assertRoundTrip(t, New(max, lookback), text)
	})
}
