package trie_test

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"lexicore/blobstore"
	"lexicore/codec"
	"lexicore/model"
	"lexicore/trie"
	"lexicore/version"
)

func newTestTrieStore(t *testing.T) *trie.Store {
	t.Helper()
	ctx := context.Background()
	blobs, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	cdc, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)
	vs, err := version.Open(ctx, filepath.Join(t.TempDir(), "meta.db"), blobs, cdc, version.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { vs.Close() })
	return trie.NewStore(vs)
}

func TestBuildThenLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestTrieStore(t)

	vocab := []string{"apple", "application", "apply"}
	_, err := s.Build(ctx, "c1", "hash-1", vocab, vocab, map[string]int{"apple": 5})
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "hash-1", loaded.VocabularyHash())
	require.Equal(t, 3, loaded.WordCount())

	results := loaded.SearchExact("apple")
	require.Len(t, results, 1)
	require.Equal(t, model.MethodExact, results[0].Method)
}

func TestLoadMissingReturnsNilNil(t *testing.T) {
	s := newTestTrieStore(t)
	loaded, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRebuildReplacesLatest(t *testing.T) {
	ctx := context.Background()
	s := newTestTrieStore(t)

	vocab1 := []string{"apple"}
	_, err := s.Build(ctx, "c1", "hash-1", vocab1, vocab1, nil)
	require.NoError(t, err)

	vocab2 := []string{"apple", "banana"}
	_, err = s.Build(ctx, "c1", "hash-2", vocab2, vocab2, nil)
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "hash-2", loaded.VocabularyHash())
	require.Equal(t, 2, loaded.WordCount())
}
