package vendormerge

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/ignite/guest-reconciler/internal/pkg/textnorm"
)

const invalidRecordReason = "Invalid record"

// legalSuffixes are stripped from the end of a name, longest first.
var legalSuffixes = [][]string{
	{"s", "de", "rl", "de", "cv"},
	{"sapi", "de", "cv"},
	{"sa", "de", "cv"},
	{"sc", "de", "rl"},
	{"sa"},
	{"sc"},
	{"inc"},
	{"ltd"},
	{"llc"},
	{"corp"},
	{"co"},
	{"gmbh"},
}

var placeholderWords = map[string]bool{
	"test": true, "testing": true, "prueba": true, "pruebas": true,
	"cancel": true, "cancelled": true, "canceled": true, "cancelado": true, "cancelada": true,
	"na": true, "none": true, "null": true, "borrar": true, "delete": true,
}

// NameKey reduces a vendor name to the key used for heuristic grouping:
// lowercase, accents folded, punctuation dropped and trailing legal
// suffixes removed. "Transportes Peñasco, S.A. de C.V." and
// "TRANSPORTES PENASCO" share the key "transportes penasco".
func NameKey(name string) string {
	tokens := nameTokens(name)
	for {
		cut := false
		for _, suffix := range legalSuffixes {
			if len(tokens) > len(suffix) && hasSuffix(tokens, suffix) {
				tokens = tokens[:len(tokens)-len(suffix)]
				cut = true
				break
			}
		}
		if !cut {
			break
		}
	}
	return strings.Join(tokens, " ")
}

// nameTokens lowercases and folds name. Dots are removed so that "S.A."
// becomes "sa"; any other punctuation separates words.
func nameTokens(name string) []string {
	folded := strings.ToLower(textnorm.FoldAccents(name))
	folded = strings.ReplaceAll(folded, ".", "")
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasSuffix(tokens, suffix []string) bool {
	off := len(tokens) - len(suffix)
	for i, s := range suffix {
		if tokens[off+i] != s {
			return false
		}
	}
	return true
}

// isPlaceholderName reports names that mark a junk record: empty, "n/a",
// strings of x's, or names made only of test/cancel words with optional
// numbers or x's ("prueba 2", "TEST XX"). A real name that merely contains
// one of those words is not a placeholder.
func isPlaceholderName(name string) bool {
	tokens := nameTokens(name)
	if len(tokens) == 0 {
		return true
	}
	joined := strings.Join(tokens, "")
	if placeholderWords[joined] || (len(joined) >= 2 && onlyRune(joined, 'x')) {
		return true
	}

	sawWord := false
	for _, t := range tokens {
		switch {
		case placeholderWords[t]:
			sawWord = true
		case onlyDigits(t), onlyRune(t, 'x'):
		default:
			return false
		}
	}
	return sawWord
}

func onlyRune(s string, r rune) bool {
	return strings.Trim(s, string(r)) == ""
}

func onlyDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// heuristicGroups groups roster vendors sharing a name key and reports
// placeholder records as single-member groups. Groups follow roster
// order, so the most used group comes first.
func heuristicGroups(r *roster) []Group {
	var (
		order   []string
		buckets = make(map[string][]Member)
		groups  []Group
	)
	for _, e := range r.entries {
		m := memberOf(e)
		if isPlaceholderName(m.Name) {
			continue
		}
		key := NameKey(m.Name)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], m)
	}

	for _, key := range order {
		members := buckets[key]
		if len(members) < 2 {
			continue
		}
		pickMaster(members, nil, r)
		groups = append(groups, Group{
			GroupID: "h" + strconv.Itoa(len(groups)+1),
			Reason:  "Same name after normalization: " + key,
			Members: members,
		})
	}

	for _, e := range r.entries {
		if !isPlaceholderName(e.Vendor.Name) {
			continue
		}
		m := memberOf(e)
		m.IsSuggestedMaster = true
		groups = append(groups, Group{
			GroupID: "h" + strconv.Itoa(len(groups)+1),
			Reason:  invalidRecordReason,
			Members: []Member{m},
		})
	}
	return groups
}
