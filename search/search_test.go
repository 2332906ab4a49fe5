package search_test

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"lexicore/blobstore"
	"lexicore/codec"
	"lexicore/corpus"
	"lexicore/dedup"
	"lexicore/embedding"
	"lexicore/model"
	"lexicore/search"
	"lexicore/semantic"
	"lexicore/trie"
	"lexicore/version"
)

func newTestFacade(t *testing.T, enableSemantic bool) (*search.Facade, *corpus.Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	blobs, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	cdc, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)
	vs, err := version.Open(ctx, filepath.Join(t.TempDir(), "meta.db"), blobs, cdc, version.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { vs.Close() })

	corpora := corpus.New(vs, func(string) []model.ResourceKey { return nil })
	tries := trie.NewStore(vs)

	mdl := embedding.NewHashing("hashing-test", 16)
	var semStore *semantic.Store
	if enableSemantic {
		semStore = semantic.NewStore(vs, blobs, mdl)
	}

	cfg := search.Config{StrongScoreThreshold: 0.9, EnableSemantic: enableSemantic, Model: mdl}
	f := search.New(corpora, tries, semStore, vs, dedup.New(0), cfg, nil)
	return f, corpora, ctx
}

func seedCorpus(t *testing.T, ctx context.Context, corpora *corpus.Store) {
	t.Helper()
	c := &model.Corpus{
		CorpusID:           "c1",
		CorpusName:         "Test",
		CorpusType:         model.CorpusLexicon,
		Vocabulary:         []string{"apple", "application", "apply", "banana"},
		OriginalVocabulary: []string{"Apple", "Application", "Apply", "Banana"},
		WordFrequencies:    map[string]int{"apple": 10, "application": 3, "apply": 7, "banana": 1},
	}
	_, err := corpora.Save(ctx, c)
	require.NoError(t, err)
}

func TestSearchExactHint(t *testing.T) {
	f, corpora, ctx := newTestFacade(t, false)
	seedCorpus(t, ctx, corpora)

	results, err := f.Search(ctx, "c1", "apple", search.HintExact, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, model.MethodExact, results[0].Method)
}

func TestSearchPrefixHint(t *testing.T) {
	f, corpora, ctx := newTestFacade(t, false)
	seedCorpus(t, ctx, corpora)

	results, err := f.Search(ctx, "c1", "app", search.HintPrefix, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		require.Equal(t, model.MethodPrefix, r.Method)
	}
}

func TestSearchAutoCascadeMergesTiers(t *testing.T) {
	f, corpora, ctx := newTestFacade(t, false)
	seedCorpus(t, ctx, corpora)

	results, err := f.Search(ctx, "c1", "apple", "", 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "apple", results[0].Term)
	require.Equal(t, model.MethodExact, results[0].Method)

	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchDeduplicatesAcrossTiers(t *testing.T) {
	f, corpora, ctx := newTestFacade(t, false)
	seedCorpus(t, ctx, corpora)

	results, err := f.Search(ctx, "c1", "apple", "", 10, 0)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, r := range results {
		require.False(t, seen[r.Term], "duplicate term in merged results: %s", r.Term)
		seen[r.Term] = true
	}
}

func TestSearchUnknownCorpusReturnsNilNil(t *testing.T) {
	f, _, ctx := newTestFacade(t, false)
	results, err := f.Search(ctx, "does-not-exist", "apple", "", 10, 0)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestSearchRejectsUnknownMethodHint(t *testing.T) {
	f, corpora, ctx := newTestFacade(t, false)
	seedCorpus(t, ctx, corpora)

	_, err := f.Search(ctx, "c1", "apple", "nonsense", 10, 0)
	require.ErrorIs(t, err, search.ErrUnknownMethodHint)
}

func TestSearchIsDeterministicAcrossRepeatedCalls(t *testing.T) {
	f, corpora, ctx := newTestFacade(t, false)
	seedCorpus(t, ctx, corpora)

	first, err := f.Search(ctx, "c1", "appl", "", 10, 0)
	require.NoError(t, err)
	second, err := f.Search(ctx, "c1", "appl", "", 10, 0)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSearchCascadeFuzzyTypoFindsApple(t *testing.T) {
	f, corpora, ctx := newTestFacade(t, false)
	seedCorpus(t, ctx, corpora)

	results, err := f.Search(ctx, "c1", "aple", "", 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	byTerm := map[string]model.SearchResult{}
	for _, r := range results {
		byTerm[r.Term] = r
	}

	apple, ok := byTerm["apple"]
	require.True(t, ok, "expected apple among results for typo query aple")
	require.Greater(t, apple.Score, 0.7)
	require.LessOrEqual(t, apple.Score, 1.0)

	_, hasApplication := byTerm["application"]
	_, hasApply := byTerm["apply"]
	require.True(t, hasApplication || hasApply, "expected application or apply to also surface for aple")
}

func TestSearchWithSemanticTierEnabled(t *testing.T) {
	f, corpora, ctx := newTestFacade(t, true)
	seedCorpus(t, ctx, corpora)

	results, err := f.Search(ctx, "c1", "apple", search.HintSemantic, 5, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, model.MethodSemantic, results[0].Method)
}
