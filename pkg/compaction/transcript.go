package compaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/memvault/memvault/pkg/memory"
)

// Transcript renders events oldest first, one block per event:
//
//	[2026-01-02T15:04:05Z] (decision) title
//	body
//	Context: snippet
//
// Oldest lines are dropped until the result fits maxChars runes. A single
// oversized line keeps its tail. maxChars <= 0 disables the bound.
func Transcript(events []*memory.Event, maxChars int) string {
	var lines []string
	for i, ev := range events {
		if i > 0 {
			lines = append(lines, "")
		}
		created := ""
		if !ev.CreatedAt.IsZero() {
			created = ev.CreatedAt.UTC().Format(time.RFC3339)
		}
		lines = append(lines, fmt.Sprintf("[%s] (%s) %s", created, ev.Type, ev.Title))
		if ev.Body != "" {
			lines = append(lines, ev.Body)
		}
		if ev.ContextSnippet != "" {
			lines = append(lines, "Context: "+ev.ContextSnippet)
		}
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if maxChars <= 0 || runeLen(text) <= maxChars {
		return text
	}

	// Joined length is total-1: one newline per line except the last.
	total := 0
	for _, l := range lines {
		total += runeLen(l) + 1
	}
	start := 0
	for start < len(lines)-1 && total-1 > maxChars {
		total -= runeLen(lines[start]) + 1
		start++
	}
	text = strings.TrimSpace(strings.Join(lines[start:], "\n"))
	if r := []rune(text); len(r) > maxChars {
		text = strings.TrimSpace(string(r[len(r)-maxChars:]))
	}
	return text
}

func runeLen(s string) int { return len([]rune(s)) }
