package version_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"lexicore/blobstore"
	"lexicore/codec"
	"lexicore/model"
	"lexicore/version"
)

type doc struct {
	X int `json:"x"`
}

func newTestStore(t *testing.T) *version.Store {
	t.Helper()
	ctx := context.Background()
	blobs, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	cdc, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)
	store, err := version.Open(ctx, filepath.Join(t.TempDir(), "meta.db"), blobs, cdc, version.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveDedupReturnsSameRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := model.ResourceKey{Type: model.ResourceDictionary, ID: "foo"}

	r1, err := store.Save(ctx, key, doc{X: 1}, version.SaveOptions{})
	require.NoError(t, err)
	r2, err := store.Save(ctx, key, doc{X: 1}, version.SaveOptions{})
	require.NoError(t, err)

	require.Equal(t, r1.ID, r2.ID)
	versions, err := store.ListVersions(ctx, key)
	require.NoError(t, err)
	require.Len(t, versions, 1)
}

func TestSaveNewContentBumpsVersionAndDemotesPrevious(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := model.ResourceKey{Type: model.ResourceDictionary, ID: "bar"}

	r1, err := store.Save(ctx, key, doc{X: 1}, version.SaveOptions{})
	require.NoError(t, err)
	r2, err := store.Save(ctx, key, doc{X: 2}, version.SaveOptions{})
	require.NoError(t, err)

	require.NotEqual(t, r1.ID, r2.ID)
	require.Equal(t, r1.ID, r2.Info.Supersedes)

	latest, err := store.GetLatest(ctx, key)
	require.NoError(t, err)
	require.Equal(t, r2.ID, latest.ID)
	require.True(t, latest.Info.IsLatest)

	prior, err := store.GetByVersion(ctx, key, r1.Info.Version)
	require.NoError(t, err)
	require.False(t, prior.Info.IsLatest)
	require.Equal(t, r2.ID, prior.Info.SupersededBy)
}

func TestConcurrentSavesProduceSingleLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := model.ResourceKey{Type: model.ResourceDictionary, ID: "concurrent"}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Save(ctx, key, doc{X: i}, version.SaveOptions{})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	versions, err := store.ListVersions(ctx, key)
	require.NoError(t, err)
	require.Len(t, versions, 5)

	latest, err := store.GetLatest(ctx, key)
	require.NoError(t, err)
	require.True(t, latest.Info.IsLatest)
}

func TestGetLatestRoundTripsContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := model.ResourceKey{Type: model.ResourceCorpus, ID: "rt"}

	_, err := store.Save(ctx, key, doc{X: 42}, version.SaveOptions{})
	require.NoError(t, err)

	latest, err := store.GetLatest(ctx, key)
	require.NoError(t, err)

	var out doc
	require.NoError(t, json.Unmarshal(latest.Content(), &out))
	require.Equal(t, 42, out.X)
}

func TestDeleteVersionPromotesPredecessor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := model.ResourceKey{Type: model.ResourceDictionary, ID: "del"}

	r1, err := store.Save(ctx, key, doc{X: 1}, version.SaveOptions{})
	require.NoError(t, err)
	r2, err := store.Save(ctx, key, doc{X: 2}, version.SaveOptions{})
	require.NoError(t, err)

	ok, err := store.DeleteVersion(ctx, key, r2.Info.Version)
	require.NoError(t, err)
	require.True(t, ok)

	latest, err := store.GetLatest(ctx, key)
	require.NoError(t, err)
	require.Equal(t, r1.ID, latest.ID)
	require.True(t, latest.Info.IsLatest)
}

func TestCascadeDeleteRemovesDependents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	corpusKey := model.ResourceKey{Type: model.ResourceCorpus, ID: "c1"}
	trieKey := model.ResourceKey{Type: model.ResourceTrie, ID: "c1"}

	_, err := store.Save(ctx, corpusKey, doc{X: 1}, version.SaveOptions{})
	require.NoError(t, err)
	_, err = store.Save(ctx, trieKey, doc{X: 1}, version.SaveOptions{})
	require.NoError(t, err)

	store.RegisterDependents(model.ResourceCorpus, func(id string) []model.ResourceKey {
		return []model.ResourceKey{{Type: model.ResourceTrie, ID: id}}
	})

	require.NoError(t, store.DeleteResource(ctx, corpusKey, true))

	latestCorpus, err := store.GetLatest(ctx, corpusKey)
	require.NoError(t, err)
	require.Nil(t, latestCorpus)

	latestTrie, err := store.GetLatest(ctx, trieKey)
	require.NoError(t, err)
	require.Nil(t, latestTrie)
}
