// Package textnorm folds free-form French text (headers, file names) to ASCII.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatures = strings.NewReplacer("œ", "oe", "Œ", "OE", "æ", "ae", "Æ", "AE", "ß", "ss")

// Fold strips diacritics: "Échéance" becomes "Echeance".
func Fold(s string) string {
	s = ligatures.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Key lowercases and folds s, joins words with underscores and drops
// everything outside [a-z0-9_].
func Key(s string) string {
	return join(s, '_')
}

// Slug is like Key but joins words with dashes.
func Slug(s string) string {
	return join(s, '-')
}

func join(s string, sep rune) string {
	s = strings.ToLower(Fold(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteRune(sep)
			}
			pendingSep = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '_', r == sep:
			pendingSep = true
		}
	}
	return b.String()
}
