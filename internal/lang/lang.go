// Package lang normalizes the language tokens devices declare when they join
// a session.
package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// Auto is the token a device sends when it wants the server default.
const Auto = "auto"

// IsAuto reports whether tok asks for auto detection. An empty token counts.
func IsAuto(tok string) bool {
	tok = strings.TrimSpace(tok)
	return tok == "" || strings.EqualFold(tok, Auto)
}

// Normalize canonicalizes a BCP 47 tag ("en-us" -> "en-US"). The auto
// sentinel normalizes to itself.
func Normalize(tok string) (string, error) {
	if IsAuto(tok) {
		return Auto, nil
	}
	tag, err := language.Parse(strings.TrimSpace(tok))
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

// Resolve maps tok to a concrete code, substituting fallback for the auto
// sentinel. Unparseable tokens are passed through trimmed so providers can
// reject them with their own error.
func Resolve(tok, fallback string) string {
	if IsAuto(tok) {
		tok = fallback
	}
	n, err := Normalize(tok)
	if err != nil || n == Auto {
		return strings.TrimSpace(tok)
	}
	return n
}

// Same reports whether a and b resolve to the same code.
func Same(a, b, fallback string) bool {
	return Resolve(a, fallback) == Resolve(b, fallback)
}

// Base returns the primary language subtag ("es-ES" -> "es").
func Base(tok string) string {
	tag, err := language.Parse(strings.TrimSpace(tok))
	if err != nil {
		if i := strings.IndexAny(tok, "-_"); i > 0 {
			return strings.ToLower(tok[:i])
		}
		return strings.ToLower(strings.TrimSpace(tok))
	}
	base, _ := tag.Base()
	return base.String()
}
