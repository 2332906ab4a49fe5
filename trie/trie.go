// Package trie implements the trie/prefix index from spec §4.7: a sorted
// normalized vocabulary with exact and prefix lookup. The persisted form is
// just the sorted list plus metadata (spec: "the in-memory prefix structure
// is reconstructed deterministically"); the in-memory structure itself is
// an FST built with github.com/blevesearch/vellum, grounded on the rest of
// the retrieved pack (vellum is the only ordered-string-set/FST library the
// corpus reaches for).
package trie

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/blevesearch/vellum"

	"lexicore/corpus"
	"lexicore/model"
)

// Index is the in-memory, queryable trie/prefix structure built from a
// corpus vocabulary.
type Index struct {
	corpusID             string
	vocabularyHash       string
	sortedTerms          []string
	frequencies          map[string]int
	normalizedToOriginal map[string]string
	maxFrequency         int
	fst                  *vellum.FST
	buildTimeSeconds     float64
}

// Build constructs an Index from a corpus's normalized vocabulary. Terms
// are deduplicated and sorted; the FST maps each term to its ordinal
// position, which doubles as the data vellum itself requires (vellum needs
// monotonically increasing uint64 values during insertion, which a sorted
// ordinal sequence satisfies for free).
func Build(corpusID, vocabularyHash string, vocabulary, originalVocabulary []string, frequencies map[string]int) (*Index, error) {
	start := time.Now()

	normToOrig := make(map[string]string, len(vocabulary))
	seen := make(map[string]bool, len(vocabulary))
	var terms []string
	for i, term := range vocabulary {
		norm := corpus.Normalize(term)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		terms = append(terms, norm)
		if i < len(originalVocabulary) {
			normToOrig[norm] = originalVocabulary[i]
		} else {
			normToOrig[norm] = term
		}
	}
	sort.Strings(terms)

	fst, err := buildFST(terms)
	if err != nil {
		return nil, err
	}

	maxFreq := 0
	for _, f := range frequencies {
		if f > maxFreq {
			maxFreq = f
		}
	}

	return &Index{
		corpusID:             corpusID,
		vocabularyHash:       vocabularyHash,
		sortedTerms:          terms,
		frequencies:          frequencies,
		normalizedToOriginal: normToOrig,
		maxFrequency:         maxFreq,
		fst:                  fst,
		buildTimeSeconds:     time.Since(start).Seconds(),
	}, nil
}

func buildFST(sortedTerms []string) (*vellum.FST, error) {
	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("trie: new fst builder: %w", err)
	}
	for i, term := range sortedTerms {
		if err := builder.Insert([]byte(term), uint64(i)); err != nil {
			builder.Close()
			return nil, fmt.Errorf("trie: insert %q: %w", term, err)
		}
	}
	if err := builder.Close(); err != nil {
		return nil, fmt.Errorf("trie: close builder: %w", err)
	}
	fst, err := vellum.Load(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("trie: load fst: %w", err)
	}
	return fst, nil
}

// ToPersisted renders the Index's persisted layout (spec §3 TrieIndex).
func (idx *Index) ToPersisted() model.TrieIndex {
	return model.TrieIndex{
		CorpusID:             idx.corpusID,
		VocabularyHash:       idx.vocabularyHash,
		TrieData:             idx.sortedTerms,
		WordFrequencies:      idx.frequencies,
		NormalizedToOriginal: idx.normalizedToOriginal,
		MaxFrequency:         idx.maxFrequency,
		WordCount:            len(idx.sortedTerms),
		BuildTimeSeconds:     idx.buildTimeSeconds,
	}
}

// FromPersisted reconstructs the in-memory FST from a previously persisted
// TrieIndex, deterministically (spec §4.7).
func FromPersisted(p model.TrieIndex) (*Index, error) {
	fst, err := buildFST(p.TrieData)
	if err != nil {
		return nil, err
	}
	return &Index{
		corpusID:             p.CorpusID,
		vocabularyHash:       p.VocabularyHash,
		sortedTerms:          p.TrieData,
		frequencies:          p.WordFrequencies,
		normalizedToOriginal: p.NormalizedToOriginal,
		maxFrequency:         p.MaxFrequency,
		fst:                  fst,
		buildTimeSeconds:     p.BuildTimeSeconds,
	}, nil
}

// WordCount returns the number of distinct terms in the index.
func (idx *Index) WordCount() int { return len(idx.sortedTerms) }

// VocabularyHash returns the hash the index was built against, for staleness checks.
func (idx *Index) VocabularyHash() string { return idx.vocabularyHash }

// SearchExact returns zero or one result for term, score 1.0, method exact
// (spec §4.7).
func (idx *Index) SearchExact(term string) []model.SearchResult {
	norm := corpus.Normalize(term)
	if idx.fst == nil {
		return nil
	}
	if _, exists, err := idx.fst.Get([]byte(norm)); err != nil || !exists {
		return nil
	}
	return []model.SearchResult{{
		Term:         norm,
		OriginalTerm: idx.normalizedToOriginal[norm],
		Score:        1.0,
		Method:       model.MethodExact,
		Frequency:    idx.frequencies[norm],
	}}
}

// SearchPrefix returns up to maxResults terms sharing prefix, scored 1.0
// minus a small penalty proportional to length difference, tie-broken by
// frequency desc then lexicographic (spec §4.7).
func (idx *Index) SearchPrefix(prefix string, maxResults int) []model.SearchResult {
	norm := corpus.Normalize(prefix)
	if norm == "" || idx.fst == nil {
		return nil
	}

	lo := sort.SearchStrings(idx.sortedTerms, norm)
	var matches []model.SearchResult
	for i := lo; i < len(idx.sortedTerms); i++ {
		term := idx.sortedTerms[i]
		if !hasPrefix(term, norm) {
			break
		}
		score := prefixScore(norm, term)
		matches = append(matches, model.SearchResult{
			Term:         term,
			OriginalTerm: idx.normalizedToOriginal[term],
			Score:        score,
			Method:       model.MethodPrefix,
			Frequency:    idx.frequencies[term],
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Frequency != matches[j].Frequency {
			return matches[i].Frequency > matches[j].Frequency
		}
		return matches[i].Term < matches[j].Term
	})

	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func prefixScore(prefix, term string) float64 {
	if term == prefix {
		return 1.0
	}
	diff := len(term) - len(prefix)
	penalty := float64(diff) * 0.01
	score := 1.0 - penalty
	if score < 0.5 {
		score = 0.5
	}
	return score
}
