package facematch

import (
	"path/filepath"
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

// IDFromFilename derives an index id from an uploaded file name: the base name
// without its extension. With ascii set, diacritics are stripped as well.
func IDFromFilename(name string, ascii bool) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	id := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if ascii {
		id = RemoveDiacritics(id)
	}
	return id
}
