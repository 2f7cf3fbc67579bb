// Package textmatch implements case- and accent-insensitive text-answer
// comparison using Unicode normalization instead of the fixed Latin-1/UTF-8
// accent table the reference implementation hand-codes (see SPEC_FULL.md
// §9). NFKD decomposes accented letters into a base letter plus combining
// marks, which are then stripped.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold removes combining marks (category Mn) after NFKD decomposition.
var fold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize case-folds and accent-folds s for comparison.
func Normalize(s string) string {
	n, _, err := transform.String(fold, s)
	if err != nil {
		n = s
	}
	return strings.ToLower(strings.TrimSpace(n))
}

// Equal reports whether a and b match under case- and accent-insensitive
// comparison.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
