package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes compatibility forms, strips combining marks, and
// drops any rune still outside ASCII. "Résumé" and "resume" normalize to
// the same string.
var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// Normalize lowercases, trims, and ascii-folds a label or target so the
// two sides of a comparison share one alphabet.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(asciiFold, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return folded
}
