package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalise prepares text for matching: letters are lower-cased, combining
// marks are removed after canonical decomposition and whitespace runs
// collapse to one space with the ends trimmed. Whitespace goes last so a
// removed mark never leaves a double space behind.
func Normalise(text string) string {
	text = strings.ToLower(text)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	if out, _, err := transform.String(t, text); err == nil {
		text = out
	}
	return strings.Join(strings.Fields(text), " ")
}
