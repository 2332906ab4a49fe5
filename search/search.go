// Package search implements the cascading search facade from spec §4.10:
// given a corpus and a query, resolve (build-or-load) its tier indices,
// cascade across exact/prefix/fuzzy/semantic according to a method hint,
// merge duplicate words keeping the strongest method and score, and return
// a deterministic, sorted, deduplicated result set. Grounded on teacher's
// repository.go composition style — a thin facade delegating to the
// underlying index types rather than reimplementing their algorithms.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"lexicore/corpus"
	"lexicore/dedup"
	"lexicore/embedding"
	"lexicore/fuzzy"
	"lexicore/model"
	"lexicore/semantic"
	"lexicore/trie"
	"lexicore/version"
)

// Method hints accepted by Search, mirroring spec §4.10 step 2.
const (
	HintExact    = "exact"
	HintPrefix   = "prefix"
	HintFuzzy    = "fuzzy"
	HintSemantic = "semantic"
	HintAuto     = "auto"
	HintHybrid   = "hybrid"
)

// ErrUnknownMethodHint is returned for a method_hint outside the closed set
// spec §4.10 defines.
var ErrUnknownMethodHint = errors.New("search: unknown method hint")

// Config carries the facade's tunables (spec §6's strong_score_threshold and
// the semantic tier's on/off switch and model).
type Config struct {
	StrongScoreThreshold float64
	EnableSemantic       bool
	Model                embedding.Model
}

// Facade resolves a corpus's SearchIndex (build-or-load via the version
// store and a dedup gate) and runs cascading queries against it.
type Facade struct {
	corpora   *corpus.Store
	tries     *trie.Store
	semantics *semantic.Store
	versions  *version.Store
	gate      *dedup.Gate
	cfg       Config
	log       *zap.Logger
}

// New builds a Facade. semantics may be nil if cfg.EnableSemantic is false.
func New(corpora *corpus.Store, tries *trie.Store, semantics *semantic.Store, versions *version.Store, gate *dedup.Gate, cfg Config, log *zap.Logger) *Facade {
	if log == nil {
		log = zap.NewNop()
	}
	if gate == nil {
		gate = dedup.New(0)
	}
	return &Facade{corpora: corpora, tries: tries, semantics: semantics, versions: versions, gate: gate, cfg: cfg, log: log}
}

func (f *Facade) searchIndexKey(corpusID string) model.ResourceKey {
	return model.ResourceKey{Type: model.ResourceSearch, ID: corpusID}
}

// resolved holds everything a cascade needs for one corpus.
type resolved struct {
	corp   *model.Corpus
	trieIx *trie.Index
	semIx  *semantic.Index
}

// resolve builds-or-loads the corpus's SearchIndex, rebuilding the trie and
// (if enabled) semantic tiers whenever the corpus's vocabulary_hash has
// moved on from what's persisted (spec §4.6/§4.9 "Cache coherence"). A
// single-flight gate keyed by (corpus_id, vocabulary_hash) coalesces
// concurrent rebuild requests for the same corpus state.
func (f *Facade) resolve(ctx context.Context, corpusID string) (*resolved, error) {
	corp, err := f.corpora.Get(ctx, corpusID)
	if err != nil {
		return nil, fmt.Errorf("search: load corpus: %w", err)
	}
	if corp == nil {
		return nil, nil
	}

	key := f.searchIndexKey(corpusID)
	rec, err := f.versions.GetLatest(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("search: load search index: %w", err)
	}

	current := f.decodeSearchIndex(rec)
	if current != nil && current.VocabularyHash == corp.VocabularyHash {
		trieIx, semIx := f.tryLoad(ctx, corpusID, current)
		if trieIx != nil {
			return &resolved{corp: corp, trieIx: trieIx, semIx: semIx}, nil
		}
		// Persisted index references a tier that failed to load; fall through
		// to a rebuild rather than expose a partial result (spec §4.9 "Failure").
	}

	gateKey := dedup.Key("search-index", corpusID, corp.VocabularyHash)
	v, err, _ := f.gate.Do(gateKey, func() (any, error) {
		return f.rebuild(ctx, corp)
	})
	if err != nil {
		return nil, err
	}
	built := v.(*resolved)
	return built, nil
}

func (f *Facade) decodeSearchIndex(rec *model.VersionRecord) *model.SearchIndex {
	if rec == nil {
		return nil
	}
	var si model.SearchIndex
	if err := json.Unmarshal(rec.Content(), &si); err != nil {
		f.log.Warn("search index decode failed, rebuilding", zap.Error(err))
		return nil
	}
	return &si
}

func (f *Facade) tryLoad(ctx context.Context, corpusID string, si *model.SearchIndex) (*trie.Index, *semantic.Index) {
	var trieIx *trie.Index
	if si.HasTrie {
		idx, err := f.tries.Load(ctx, corpusID)
		if err != nil || idx == nil || idx.VocabularyHash() != si.VocabularyHash {
			f.log.Warn("trie tier load failed or stale", zap.String("corpus_id", corpusID), zap.Error(err))
			return nil, nil
		}
		trieIx = idx
	}
	var semIx *semantic.Index
	if si.HasSemantic && f.cfg.EnableSemantic && f.semantics != nil {
		idx, err := f.semantics.Load(ctx, corpusID)
		if err != nil {
			f.log.Warn("semantic tier load failed, degrading to non-semantic tiers", zap.String("corpus_id", corpusID), zap.Error(err))
		} else if idx != nil && idx.VocabularyHash() == si.VocabularyHash {
			semIx = idx
		}
	}
	return trieIx, semIx
}

func (f *Facade) rebuild(ctx context.Context, corp *model.Corpus) (*resolved, error) {
	trieIx, err := f.tries.Build(ctx, corp.CorpusID, corp.VocabularyHash, corp.Vocabulary, corp.OriginalVocabulary, corp.WordFrequencies)
	if err != nil {
		return nil, fmt.Errorf("search: build trie tier: %w", err)
	}

	si := model.SearchIndex{
		CorpusID:       corp.CorpusID,
		VocabularyHash: corp.VocabularyHash,
		HasTrie:        true,
		HasFuzzy:       true,
	}

	var semIx *semantic.Index
	if f.cfg.EnableSemantic && f.semantics != nil && f.cfg.Model != nil {
		idx, err := f.semantics.Build(ctx, corp.CorpusID, corp.VocabularyHash, corp.Vocabulary, corp.LemmatizedVocabulary)
		if err != nil {
			// Degrade gracefully: a failed semantic build never blocks exact/
			// prefix/fuzzy search (spec §7).
			f.log.Warn("semantic tier build failed, continuing without it", zap.String("corpus_id", corp.CorpusID), zap.Error(err))
		} else {
			semIx = idx
			si.HasSemantic = true
			si.SemanticModel = f.cfg.Model.ModelName()
		}
	}

	if _, err := f.versions.Save(ctx, f.searchIndexKey(corp.CorpusID), si, version.SaveOptions{}); err != nil {
		return nil, fmt.Errorf("search: save search index: %w", err)
	}
	return &resolved{corp: corp, trieIx: trieIx, semIx: semIx}, nil
}

// Search runs the cascade described in spec §4.10 and returns the merged,
// sorted, clipped result set.
func (f *Facade) Search(ctx context.Context, corpusID, query string, methodHint string, maxResults int, minScore float64) ([]model.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	r, err := f.resolve(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}

	var pool []model.SearchResult
	switch methodHint {
	case "", HintAuto, HintHybrid:
		pool = f.cascadeAuto(r, query, maxResults)
	case HintExact:
		pool = r.trieIx.SearchExact(query)
	case HintPrefix:
		pool = r.trieIx.SearchPrefix(query, maxResults)
	case HintFuzzy:
		pool = fuzzy.Search(fuzzyCandidates(r.corp), query, 0, maxResults)
	case HintSemantic:
		if r.semIx == nil || f.cfg.Model == nil {
			return nil, nil
		}
		results, err := r.semIx.Search(ctx, query, maxResults, 0, f.cfg.Model)
		if err != nil {
			f.log.Warn("semantic search failed", zap.Error(err))
			return nil, nil
		}
		pool = results
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethodHint, methodHint)
	}

	return f.mergeSortClip(pool, maxResults, minScore), nil
}

// cascadeAuto implements spec §4.10 step 2's auto/hybrid branch: run exact,
// then prefix, then fuzzy, then semantic, stopping early once the pool has
// maxResults strong (score >= strong_score_threshold) results.
func (f *Facade) cascadeAuto(r *resolved, query string, maxResults int) []model.SearchResult {
	var pool []model.SearchResult
	strongEnough := func() bool {
		return countStrong(pool, f.cfg.StrongScoreThreshold) >= maxResults
	}

	if r.trieIx != nil {
		pool = append(pool, r.trieIx.SearchExact(query)...)
	}
	if strongEnough() {
		return pool
	}

	if r.trieIx != nil {
		pool = append(pool, r.trieIx.SearchPrefix(query, maxResults)...)
	}
	if strongEnough() {
		return pool
	}

	pool = append(pool, fuzzy.Search(fuzzyCandidates(r.corp), query, 0, maxResults)...)
	if strongEnough() {
		return pool
	}

	if r.semIx != nil && f.cfg.Model != nil {
		results, err := r.semIx.Search(context.Background(), query, maxResults, 0, f.cfg.Model)
		if err != nil {
			f.log.Warn("semantic tier skipped in cascade", zap.Error(err))
		} else {
			pool = append(pool, results...)
		}
	}
	return pool
}

func countStrong(results []model.SearchResult, threshold float64) int {
	n := 0
	for _, r := range results {
		if r.Score >= threshold {
			n++
		}
	}
	return n
}

// mergeSortClip implements spec §4.10 steps 3-5: union by normalized word
// keeping the highest score and strongest (earliest-precedence) method,
// sort by score desc / method precedence / frequency desc / lexicographic,
// filter by minScore, clip to maxResults.
func (f *Facade) mergeSortClip(pool []model.SearchResult, maxResults int, minScore float64) []model.SearchResult {
	best := make(map[string]model.SearchResult, len(pool))
	for _, r := range pool {
		cur, ok := best[r.Term]
		if !ok {
			best[r.Term] = r
			continue
		}
		if r.Score > cur.Score || (r.Score == cur.Score && r.Method.Precedence() < cur.Method.Precedence()) {
			best[r.Term] = r
		}
	}

	merged := make([]model.SearchResult, 0, len(best))
	for _, r := range best {
		if r.Score < minScore {
			continue
		}
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].Method.Precedence() != merged[j].Method.Precedence() {
			return merged[i].Method.Precedence() < merged[j].Method.Precedence()
		}
		if merged[i].Frequency != merged[j].Frequency {
			return merged[i].Frequency > merged[j].Frequency
		}
		return merged[i].Term < merged[j].Term
	})

	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged
}

func fuzzyCandidates(corp *model.Corpus) []fuzzy.Candidate {
	out := make([]fuzzy.Candidate, 0, len(corp.Vocabulary))
	for i, term := range corp.Vocabulary {
		original := term
		if i < len(corp.OriginalVocabulary) {
			original = corp.OriginalVocabulary[i]
		}
		lemma := ""
		if i < len(corp.LemmatizedVocabulary) {
			lemma = corp.LemmatizedVocabulary[i]
		}
		out = append(out, fuzzy.Candidate{
			Normalized: term,
			Original:   original,
			Frequency:  corp.WordFrequencies[term],
			Lemma:      lemma,
		})
	}
	return out
}
