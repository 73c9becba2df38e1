// Package textnorm holds the string folding rules shared by the CSV
// normalizer, the feed importer and the vendor grouper.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks: "Peñasco Tours" -> "Penasco Tours".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// CollapseSpaces trims s and reduces internal whitespace runs to one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TitleName title-cases a personal name when it arrives in a single case
// ("JANE DOE", "jane doe"). Mixed-case input such as "McDonald" is kept.
func TitleName(s string) string {
	s = CollapseSpaces(s)
	if s == "" {
		return ""
	}
	if s != strings.ToUpper(s) && s != strings.ToLower(s) {
		return s
	}
	return cases.Title(language.Und).String(s)
}

// Key lowercases, folds accents and collapses whitespace. Used for
// case-insensitive comparisons of names and headers.
func Key(s string) string {
	return strings.ToLower(CollapseSpaces(FoldAccents(s)))
}
