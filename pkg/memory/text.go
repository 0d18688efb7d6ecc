package memory

import "strings"

// Clip shortens text to at most max runes, ending with "..." when clipped.
// It is a display-time helper and never applied to stored content.
func Clip(text string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// NormalizeContent lower-cases and collapses whitespace; used for duplicate grouping.
func NormalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// JoinNonEmpty joins the non-blank parts with newlines. Requirements and events
// are embedded as title, body and context snippet joined this way.
func JoinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

// Contains reports whether list holds s.
func Contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
