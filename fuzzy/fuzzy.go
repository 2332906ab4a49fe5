// Package fuzzy implements the fuzzy index from spec §4.8: an n-gram
// prefilter followed by normalized edit distance over a corpus vocabulary,
// with tiered score thresholds, lemma-aware deduplication, multi-word query
// averaging, and diacritic-max scoring. No separate persisted index is
// required beyond the corpus itself. Grounded on
// github.com/agnivade/levenshtein for the edit-distance primitive — the
// only Levenshtein implementation in the retrieved pack.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"lexicore/corpus"
	"lexicore/model"
)

// Score tier thresholds from spec §4.8.
const (
	tierMinimal  = 0.8
	tierModerate = 0.6
	tierHigh     = 0.5
)

// Candidate is one vocabulary entry available for fuzzy matching.
type Candidate struct {
	Normalized string
	Original   string
	Frequency  int
	Lemma      string // empty if no lemma map is available for this term
}

// Search runs the full spec §4.8 algorithm over candidates for query,
// returning up to maxResults results scoring at least minScore.
func Search(candidates []Candidate, query string, minScore float64, maxResults int) []model.SearchResult {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return nil
	}

	type scored struct {
		c     Candidate
		score float64
	}
	var pool []scored

	ngramThreshold := dynamicNgramThreshold(query)
	for _, c := range candidates {
		total := 0.0
		for _, tok := range tokens {
			total += bestTokenScore(tok, c.Normalized, c.Original, ngramThreshold)
		}
		avg := total / float64(len(tokens))
		if avg <= tierHigh {
			continue // "extreme" tier: rejected outright
		}
		if avg < minScore {
			continue
		}
		pool = append(pool, scored{c: c, score: avg})
	}

	// Lemma-aware dedup: keep the best-scoring surface form per lemma; terms
	// with no lemma (empty string) are never collapsed into each other.
	bestByLemma := make(map[string]scored)
	var noLemma []scored
	for _, s := range pool {
		if s.c.Lemma == "" {
			noLemma = append(noLemma, s)
			continue
		}
		if cur, ok := bestByLemma[s.c.Lemma]; !ok || s.score > cur.score {
			bestByLemma[s.c.Lemma] = s
		}
	}
	final := append([]scored(nil), noLemma...)
	for _, s := range bestByLemma {
		final = append(final, s)
	}

	sort.SliceStable(final, func(i, j int) bool {
		if final[i].score != final[j].score {
			return final[i].score > final[j].score
		}
		if final[i].c.Frequency != final[j].c.Frequency {
			return final[i].c.Frequency > final[j].c.Frequency
		}
		return final[i].c.Normalized < final[j].c.Normalized
	})

	if maxResults > 0 && len(final) > maxResults {
		final = final[:maxResults]
	}

	out := make([]model.SearchResult, 0, len(final))
	for _, s := range final {
		out = append(out, model.SearchResult{
			Term:         s.c.Normalized,
			OriginalTerm: s.c.Original,
			Score:        s.score,
			Method:       model.MethodFuzzy,
			Frequency:    s.c.Frequency,
		})
	}
	return out
}

// bestTokenScore scores token against a single candidate term, taking the
// max of the diacritic-stripped and diacritic-preserving comparisons (spec
// §4.8: "scoring both ... and taking the max").
func bestTokenScore(token, normalizedTerm, originalTerm string, ngramThreshold float64) float64 {
	stripped := scoreIfPlausible(corpus.Normalize(token), normalizedTerm, ngramThreshold)
	preserved := scoreIfPlausible(strings.ToLower(token), strings.ToLower(originalTerm), ngramThreshold)
	if preserved > stripped {
		return preserved
	}
	return stripped
}

func scoreIfPlausible(a, b string, ngramThreshold float64) float64 {
	if ngramOverlap(a, b) < ngramThreshold {
		return 0
	}
	return editScore(a, b)
}

func editScore(a, b string) float64 {
	if a == b {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	score := 1.0 - float64(dist)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

// dynamicNgramThreshold relaxes the prefilter for longer queries, which can
// tolerate more edits (spec §4.8 step 1).
func dynamicNgramThreshold(query string) float64 {
	n := len(query)
	switch {
	case n <= 3:
		return 0.5
	case n <= 6:
		return 0.35
	default:
		return 0.2
	}
}

// ngramOverlap computes bigram Jaccard overlap between a and b, a cheap
// prefilter ahead of the more expensive edit-distance computation.
func ngramOverlap(a, b string) float64 {
	ag := bigrams(a)
	bg := bigrams(b)
	if len(ag) == 0 || len(bg) == 0 {
		if a == b {
			return 1
		}
		return 0
	}
	inter := 0
	for g := range ag {
		if bg[g] {
			inter++
		}
	}
	union := len(ag) + len(bg) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func bigrams(s string) map[string]bool {
	runes := []rune(s)
	out := make(map[string]bool)
	if len(runes) < 2 {
		if len(runes) == 1 {
			out[string(runes)] = true
		}
		return out
	}
	for i := 0; i < len(runes)-1; i++ {
		out[string(runes[i:i+2])] = true
	}
	return out
}

// Tier maps a score to its named threshold tier, for callers that need to label a score
// (e.g. diagnostics), mirroring spec §4.8's minimal/moderate/high/extreme.
func Tier(score float64) string {
	switch {
	case score > tierMinimal:
		return "minimal"
	case score > tierModerate:
		return "moderate"
	case score > tierHigh:
		return "high"
	default:
		return "extreme"
	}
}
