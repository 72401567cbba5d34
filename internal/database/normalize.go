package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Výroba" -> "Vyroba").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes a name or department for comparison
// (lowercase, no diacritics, trimmed). Department filters and employee
// lookups by name use this so "Výroba" and "vyroba" match.
func NormalizeName(s string) string {
	s = RemoveDiacritics(s)
	s = strings.ToLower(s)
	return strings.TrimSpace(s)
}
