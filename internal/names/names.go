// Package names normalizes person names for filtering and for building storage-safe slugs.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Normalize prepares a name for comparison (lowercase, no diacritics, spaces for dashes
// and underscores, collapsed whitespace).
func Normalize(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// Matches reports whether name contains filter after normalizing both. An empty filter matches everything.
func Matches(name, filter string) bool {
	filter = Normalize(filter)
	if filter == "" {
		return true
	}
	return strings.Contains(Normalize(name), filter)
}

// Slug turns a name into a lowercase ASCII token made of [a-z0-9-], suitable for file
// and object names. Names with no usable characters become "face".
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range Normalize(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > 64 {
		slug = strings.TrimSuffix(slug[:64], "-")
	}
	if slug == "" {
		return "face"
	}
	return slug
}
