package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const keySeparator = "___"

// NormalizeText folds s for identity comparisons: diacritics removed,
// lowercased, every run of non-alphanumeric characters collapsed to a single
// space, and trimmed.
func NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(folder, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// DeterministicKey derives the identity key of a title/platform pair. It
// ignores matching history entirely.
func DeterministicKey(title, platform string) string {
	return NormalizeText(title) + keySeparator + NormalizePlatform(platform)
}

// KeyFor is DeterministicKey applied to a record.
func KeyFor(rec Record) string {
	return DeterministicKey(rec.Title, rec.PlatformKey())
}
