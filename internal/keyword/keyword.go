// Package keyword parses keyword lists and matches them against free text
// without regard to case or diacritics.
package keyword

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s with Unicode case folding and strips combining marks, so
// "Dyrektor Finansów" and "dyrektor finansow" fold to the same string.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Parse splits a comma-separated keyword list, trims each entry, drops empty
// entries and removes duplicates that fold to the same form. The first
// spelling of each keyword is kept and input order is preserved.
func Parse(list string) []string {
	return Clean(strings.Split(list, ","))
}

// Clean trims, drops empties, and de-duplicates values by folded form,
// preserving the first spelling and input order.
func Clean(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := Fold(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// Matcher reports whether text contains any of a fixed set of terms.
type Matcher struct {
	terms []string
}

// NewMatcher folds terms once so repeated matching stays cheap.
func NewMatcher(terms []string) *Matcher {
	m := &Matcher{}
	for _, t := range Clean(terms) {
		m.terms = append(m.terms, Fold(t))
	}
	return m
}

// Empty reports whether the matcher has no terms.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.terms) == 0
}

// MatchAny reports whether any of texts contains any term as a substring.
func (m *Matcher) MatchAny(texts ...string) bool {
	if m.Empty() {
		return false
	}
	for _, text := range texts {
		if text == "" {
			continue
		}
		folded := Fold(text)
		for _, term := range m.terms {
			if strings.Contains(folded, term) {
				return true
			}
		}
	}
	return false
}
