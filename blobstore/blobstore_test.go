package blobstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lexicore/blobstore"
	"lexicore/model"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	loc, err := store.Put(ctx, model.NamespaceDictionary, "abc123", []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, model.NamespaceDictionary, loc.Namespace)
	require.Equal(t, int64(len("hello world")), loc.Size)

	got, err := store.Get(ctx, model.NamespaceDictionary, "abc123")
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got)
}

func TestGetAbsentReturnsNilNil(t *testing.T) {
	store, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), model.NamespaceDictionary, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetStrictReturnsErrNotFound(t *testing.T) {
	store, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.GetStrict(context.Background(), model.NamespaceDictionary, "missing")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDeleteThenGetIsAbsent(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Put(ctx, model.NamespaceCorpus, "k1", []byte("v1"))
	require.NoError(t, err)
	require.True(t, store.Has(model.NamespaceCorpus, "k1"))

	require.NoError(t, store.Delete(ctx, model.NamespaceCorpus, "k1"))
	require.False(t, store.Has(model.NamespaceCorpus, "k1"))

	// deleting again is not an error
	require.NoError(t, store.Delete(ctx, model.NamespaceCorpus, "k1"))
}

func TestPutShardsByKeyHexPrefix(t *testing.T) {
	root := t.TempDir()
	store, err := blobstore.New(root, nil)
	require.NoError(t, err)

	loc, err := store.Put(context.Background(), model.NamespaceTrie, "z", []byte("data"))
	require.NoError(t, err)

	// "z" hex-encodes to "7a"; the shard dir must be its first two hex chars.
	require.Equal(t, filepath.Join(root, string(model.NamespaceTrie), "7a", "7a"), loc.Path)
}

func TestCleanupExpiredRemovesScheduledOrphans(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Put(ctx, model.NamespaceSemantic, "orphan", []byte("x"))
	require.NoError(t, err)
	store.ScheduleCleanup(model.NamespaceSemantic, "orphan")

	require.NoError(t, store.CleanupExpired(ctx, model.NamespaceSemantic, func(string) bool { return false }))
	require.False(t, store.Has(model.NamespaceSemantic, "orphan"))
}

func TestCleanupExpiredAppliesPredicate(t *testing.T) {
	ctx := context.Background()
	store, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.Put(ctx, model.NamespaceSemantic, "keep", []byte("x"))
	require.NoError(t, err)
	_, err = store.Put(ctx, model.NamespaceSemantic, "drop", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.CleanupExpired(ctx, model.NamespaceSemantic, func(key string) bool {
		return key == "drop"
	}))

	require.True(t, store.Has(model.NamespaceSemantic, "keep"))
	require.False(t, store.Has(model.NamespaceSemantic, "drop"))
}
