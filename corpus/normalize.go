package corpus

import "strings"

// diacriticFold maps common Latin letters carrying diacritics to their bare
// ASCII form. No library in the retrieved pack performs Unicode
// normalization (no repo imports golang.org/x/text or similar) and the
// scope here is narrow enough — folding a bounded alphabet — that hand
// rolling it beats pulling in a dependency purely for this.
var diacriticFold = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ý': 'y', 'ÿ': 'y',
	'ñ': 'n', 'ç': 'c',
}

// Normalize lowercases and diacritic-folds term, the single normalization
// function used consistently at corpus build time and query time (spec
// §4.7: "Case and diacritics are first normalized by the same function used
// at build time").
func Normalize(term string) string {
	lowered := strings.ToLower(term)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if folded, ok := diacriticFold[r]; ok {
			b.WriteRune(folded)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
