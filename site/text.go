package site

import "strings"

// metaDescription squeezes page text into a single-line description capped
// for meta tags. Whitespace collapses; truncation is rune-aware so accented
// text never splits mid-character.
func metaDescription(summary, fallback string) string {
	const limit = 160
	text := strings.TrimSpace(summary)
	if text == "" {
		text = strings.TrimSpace(fallback)
	}
	if text == "" {
		return ""
	}
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "..."
}
