// Package semantic implements the semantic/vector index from spec §4.9:
// per-term embeddings, unit normalization, an approximate-nearest-neighbor
// structure with a quantization tier selected by vocabulary size, lemma
// collapsing, and vocabulary-hash cache coherence. Grounded on
// github.com/coder/hnsw for the ANN structure (the only HNSW graph library
// in the retrieved pack) and gonum.org/v1/gonum for the cosine-similarity
// vector math.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/coder/hnsw"
	"gonum.org/v1/gonum/floats"

	"lexicore/embedding"
	"lexicore/model"
)

// ErrCorruptIndex is returned when a persisted semantic index cannot be
// decoded; callers must rebuild rather than expose a partial load (spec §4.9
// "Failure").
var ErrCorruptIndex = errors.New("semantic: corrupt index")

// Index is the in-memory, queryable semantic structure built from a
// corpus's vocabulary.
type Index struct {
	corpusID          string
	modelName         string
	vocabularyHash    string
	vocabulary        []string
	lemmatized        []string
	dimension         int
	tier              Tier
	vectors           [][]float32
	graph             *hnsw.Graph[int]
	variantMapping    map[int]int
	lemmaToEmbeddings map[int][]int
	buildTimeSeconds  float64
}

// Build embeds vocabulary via model, normalizes each vector, selects a
// quantization tier by vocabulary size, and builds an ANN graph over it
// (spec §4.9 "Build").
func Build(ctx context.Context, corpusID, vocabularyHash string, vocabulary, lemmatized []string, mdl embedding.Model) (*Index, error) {
	start := time.Now()
	if len(vocabulary) == 0 {
		return &Index{
			corpusID: corpusID, modelName: mdl.ModelName(), vocabularyHash: vocabularyHash,
			dimension: mdl.Dimension(), tier: SelectTier(0), graph: hnsw.NewGraph[int](),
		}, nil
	}

	vectors, err := mdl.EmbedBatch(ctx, vocabulary)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed batch: %w", err)
	}
	for _, v := range vectors {
		unitNormalize(v)
	}

	tier := SelectTier(len(vocabulary))
	graph := buildGraph(vectors)

	variantMapping, lemmaToEmbeddings := buildLemmaMappings(lemmatized)

	return &Index{
		corpusID:          corpusID,
		modelName:         mdl.ModelName(),
		vocabularyHash:    vocabularyHash,
		vocabulary:        vocabulary,
		lemmatized:        lemmatized,
		dimension:         mdl.Dimension(),
		tier:              tier,
		vectors:           vectors,
		graph:             graph,
		variantMapping:    variantMapping,
		lemmaToEmbeddings: lemmaToEmbeddings,
		buildTimeSeconds:  time.Since(start).Seconds(),
	}, nil
}

func buildGraph(vectors [][]float32) *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	for i, v := range vectors {
		g.Add(hnsw.MakeNode(i, hnsw.Vector(v)))
	}
	return g
}

func buildLemmaMappings(lemmatized []string) (map[int]int, map[int][]int) {
	if len(lemmatized) == 0 {
		return nil, nil
	}
	variantMapping := make(map[int]int, len(lemmatized))
	lemmaIndex := make(map[string]int)
	lemmaToEmbeddings := make(map[int][]int)
	for i, lemma := range lemmatized {
		li, ok := lemmaIndex[lemma]
		if !ok {
			li = len(lemmaIndex)
			lemmaIndex[lemma] = li
		}
		variantMapping[i] = li
		lemmaToEmbeddings[li] = append(lemmaToEmbeddings[li], i)
	}
	return variantMapping, lemmaToEmbeddings
}

func unitNormalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	scale := float32(1 / floats.Norm(toFloat64(v), 2))
	for i := range v {
		v[i] *= scale
	}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	return floats.Dot(toFloat64(a), toFloat64(b))
}

// VocabularyHash returns the hash this index was built against (spec §4.6
// "Change detection").
func (idx *Index) VocabularyHash() string { return idx.vocabularyHash }

// Tier returns the quantization tier selected at build time; for an index
// from FromPersisted it is the tier read back from the matrix header.
func (idx *Index) Tier() Tier { return idx.tier }

// Search embeds query, retrieves ANN candidates, rescoring by exact cosine
// similarity, collapses by lemma, and returns up to k results at or above
// minScore (spec §4.9 "Search").
func (idx *Index) Search(ctx context.Context, query string, k int, minScore float64, mdl embedding.Model) ([]model.SearchResult, error) {
	if len(idx.vectors) == 0 || k <= 0 {
		return nil, nil
	}
	qvec, err := mdl.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}
	unitNormalize(qvec)

	candidateCount := k * 3
	if candidateCount < k {
		candidateCount = k
	}
	if candidateCount > len(idx.vectors) {
		candidateCount = len(idx.vectors)
	}
	nodes := idx.graph.Search(hnsw.Vector(qvec), candidateCount)

	type scored struct {
		idx   int
		score float64
	}
	scoredCandidates := make([]scored, 0, len(nodes))
	for _, n := range nodes {
		scoredCandidates = append(scoredCandidates, scored{idx: n.Key, score: cosineSimilarity(qvec, idx.vectors[n.Key])})
	}

	// Collapse by lemma: keep the best-scoring surface form per lemma group.
	bestByLemma := make(map[int]scored)
	var ungrouped []scored
	for _, c := range scoredCandidates {
		lemmaIdx, ok := idx.variantMapping[c.idx]
		if !ok {
			ungrouped = append(ungrouped, c)
			continue
		}
		if cur, exists := bestByLemma[lemmaIdx]; !exists || c.score > cur.score {
			bestByLemma[lemmaIdx] = c
		}
	}
	final := append([]scored(nil), ungrouped...)
	for _, c := range bestByLemma {
		final = append(final, c)
	}

	var results []model.SearchResult
	for _, c := range final {
		if c.score < minScore {
			continue
		}
		results = append(results, model.SearchResult{
			Term:   idx.vocabulary[c.idx],
			Score:  c.score,
			Method: model.MethodSemantic,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Term < results[j].Term
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// ToPersisted renders the persisted SemanticIndex layout (spec §3) plus the
// raw embedding-matrix bytes meant for the caller to write to the blob
// store under EmbeddingBlobKey.
func (idx *Index) ToPersisted() (model.SemanticIndex, []byte, error) {
	matrix, err := encodeMatrix(idx.tier, idx.vectors)
	if err != nil {
		return model.SemanticIndex{}, nil, err
	}
	return model.SemanticIndex{
		CorpusID:             idx.corpusID,
		ModelName:            idx.modelName,
		VocabularyHash:       idx.vocabularyHash,
		Vocabulary:           idx.vocabulary,
		LemmatizedVocabulary: idx.lemmatized,
		Dimension:            idx.dimension,
		QuantizationTier:     string(idx.tier),
		VariantMapping:       idx.variantMapping,
		LemmaToEmbeddings:    idx.lemmaToEmbeddings,
		BuildTimeSeconds:     idx.buildTimeSeconds,
	}, matrix, nil
}

// FromPersisted reconstructs an Index from its persisted layout and raw
// embedding-matrix bytes, rebuilding the ANN graph deterministically from
// the decoded vectors (spec §4.9's load path).
func FromPersisted(p model.SemanticIndex, matrixBytes []byte) (*Index, error) {
	tier, vectors, err := decodeMatrix(matrixBytes)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(p.Vocabulary) && len(p.Vocabulary) > 0 {
		return nil, fmt.Errorf("%w: matrix row count does not match vocabulary", ErrCorruptIndex)
	}
	return &Index{
		corpusID:          p.CorpusID,
		modelName:         p.ModelName,
		vocabularyHash:    p.VocabularyHash,
		vocabulary:        p.Vocabulary,
		lemmatized:        p.LemmatizedVocabulary,
		dimension:         p.Dimension,
		tier:              tier,
		vectors:           vectors,
		graph:             buildGraph(vectors),
		variantMapping:    p.VariantMapping,
		lemmaToEmbeddings: p.LemmaToEmbeddings,
		buildTimeSeconds:  p.BuildTimeSeconds,
	}, nil
}
