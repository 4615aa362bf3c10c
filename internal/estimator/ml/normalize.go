package ml

import (
	"strings"
	"unicode"
)

// NormalizeSpecies strips a leading genus from species, so
// "Cattleya maxima" with genus "Cattleya" becomes "maxima".
func NormalizeSpecies(species, genus string) string {
	s := strings.TrimSpace(species)
	g := strings.TrimSpace(genus)
	if g == "" || len(s) < len(g) {
		return s
	}
	rest := s[len(g):]
	if strings.EqualFold(s[:len(g)], g) && (rest == "" || rest[0] == ' ') {
		return strings.TrimSpace(rest)
	}
	return s
}

// NormalizeLocation collapses "V-0 - M-1A - P-0" into "V-0 M-1A P-A":
// dash separators become spaces and a numeric shelf position P-n becomes
// the letter form.
func NormalizeLocation(location string) string {
	l := strings.ReplaceAll(strings.TrimSpace(location), " - ", " ")
	if !strings.Contains(l, "P-") {
		return l
	}
	parts := strings.Fields(l)
	for i, p := range parts {
		if len(p) == 3 && strings.HasPrefix(p, "P-") && unicode.IsDigit(rune(p[2])) {
			parts[i] = "P-" + string(rune('A'+(p[2]-'0')))
		}
	}
	return strings.Join(parts, " ")
}

// NormalizeResponsible upper-cases the responsible person's name
func NormalizeResponsible(responsible string) string {
	return strings.ToUpper(strings.TrimSpace(responsible))
}
