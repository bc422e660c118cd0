package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugReplacer = regexp.MustCompile("[^a-z0-9]+")

// Slugify creates a slug from the given string.
func Slugify(s string) string {
	s = strings.ToLower(s)

	// Remove accents
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)

	s = slugReplacer.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// Normalize removes NULL bytes and trims the string.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
