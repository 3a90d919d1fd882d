// Package policy masks personal data in transcripts before they reach logs.
package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type rule struct {
	pattern *regexp.Regexp
	marker  string
}

// Card numbers are matched before phone numbers; the phone pattern would
// otherwise swallow them.
var rules = []rule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[email]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[card]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[phone]"},
}

// Redact masks emails, card numbers, and phone numbers in text.
func Redact(text string) (string, bool) {
	out := text
	for _, r := range rules {
		out = r.pattern.ReplaceAllString(out, r.marker)
	}
	return out, out != text
}

// Preview returns a redacted transcript cut to at most maxRunes runes, for
// debug logs. maxRunes <= 0 disables truncation.
func Preview(text string, maxRunes int) string {
	out, _ := Redact(strings.TrimSpace(text))
	if maxRunes <= 0 || utf8.RuneCountInString(out) <= maxRunes {
		return out
	}
	runes := []rune(out)
	return string(runes[:maxRunes]) + "…"
}
