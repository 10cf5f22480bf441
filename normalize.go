package mailsort

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// canonicalizer strips diacritics by decomposing to NFKD and removing
// combining marks. Shared and safe for concurrent use.
var canonicalizer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// CanonicalKey reduces a folder path to its comparison form: NFKD
// decomposition with combining marks removed, lower-cased, and trimmed of
// surrounding whitespace. Two paths that differ only in case, accents, or
// surrounding whitespace map to the same key.
//
// CanonicalKey is total: if the transform fails on malformed input the raw
// string is folded and trimmed instead, so a key is always produced.
func CanonicalKey(path string) string {
	out, _, err := transform.String(canonicalizer, path)
	if err != nil {
		out = path
	}
	return strings.TrimSpace(strings.ToLower(out))
}
