// Package match decides whether a title returned by the rating catalog
// refers to the same work as a title from the listing catalog.
package match

import (
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fold lower-cases a title. It is the only normalization applied before
// scoring: punctuation, accents, articles and whitespace are kept, since
// titles that differ only by them must keep scoring differently.
func Fold(s string) string {
	// A Caser carries state, so each call gets its own.
	return cases.Lower(language.Und).String(s)
}

// Score returns the matching-blocks similarity ratio of two titles in [0,1]:
// twice the number of runes in the longest matching blocks, divided by the
// combined rune count. 1 means identical after folding, 0 means no overlap.
func Score(a, b string) float64 {
	a, b = Fold(a), Fold(b)
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	// The block search breaks ties by position, so the pair is ordered
	// first to make the ratio symmetric.
	if a > b {
		a, b = b, a
	}
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
