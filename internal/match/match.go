// Package match decides whether two free-text titles denote the same product.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopwords are filler, edition and format tokens that never distinguish two
// products. They are compared after folding, so they must be ascii lowercase.
var stopwords = map[string]struct{}{
	"vf":        {},
	"vo":        {},
	"edition":   {},
	"et":        {},
	"le":        {},
	"jeu":       {},
	"de":        {},
	"societe":   {},
	"boardgame": {},
	"the":       {},
}

// punctuation that shop titles sprinkle around freely, replaced by spaces
// before tokenizing.
var punctReplacer = strings.NewReplacer(
	":", " ",
	"-", " ",
	"'", " ",
	"’", " ",
	"&", " ",
	"[", " ",
	"]", " ",
	"=", " ",
	",", " ",
	"!", " ",
	"`", " ",
)

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// fold lowercases a token and strips diacritics, so "D'adlerstein" and
// "d’Adlerstein" tokenize identically.
func fold(token string) string {
	folded, _, err := transform.String(foldTransformer, token)
	if err != nil {
		folded = token
	}
	return strings.ToLower(folded)
}

func tokenSet(name string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(punctReplacer.Replace(name)) {
		set[fold(tok)] = struct{}{}
	}
	return set
}

// Similar reports whether the two names denote the same product: every token
// present in one name but not the other must be a stopword. This tolerates
// truncated titles ("X Base" vs "X") but rejects names differing by any
// meaningful word.
func Similar(name1, name2 string) bool {
	set1 := tokenSet(name1)
	set2 := tokenSet(name2)

	for tok := range set1 {
		if _, ok := set2[tok]; ok {
			continue
		}
		if _, stop := stopwords[tok]; !stop {
			return false
		}
	}
	for tok := range set2 {
		if _, ok := set1[tok]; ok {
			continue
		}
		if _, stop := stopwords[tok]; !stop {
			return false
		}
	}
	return true
}
