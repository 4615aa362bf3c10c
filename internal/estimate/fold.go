package estimate

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldKey normalizes a categorical value for lookups: trimmed, inner
// whitespace collapsed, accents removed and case folded. "Híbrido " and
// "HIBRIDO" share a key.
func FoldKey(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	// transformers carry state, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

// NormalizeType maps the spelling variants of pollination types found in
// lab records onto SELF, SIBLING and HYBRID. Unknown values come back
// trimmed and upper-cased.
func NormalizeType(t string) string {
	switch FoldKey(t) {
	case "hybrid", "hibrida", "hibrido":
		return "HYBRID"
	case "sibling", "sibbling":
		return "SIBLING"
	case "self":
		return "SELF"
	}
	return strings.ToUpper(strings.TrimSpace(t))
}
