package cache_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lexicore/blobstore"
	"lexicore/cache"
	"lexicore/codec"
	"lexicore/model"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	blobs, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	c, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)
	return cache.New(cache.Config{Namespace: model.NamespaceDictionary, L1Size: 8, L1TTL: time.Minute}, blobs, c, nil)
}

func TestSetThenGetHitsL1(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "word:cat", []byte("feline"), 0))
	v, ok := c.Get(ctx, "word:cat")
	require.True(t, ok)
	require.Equal(t, []byte("feline"), v)
	require.Equal(t, int64(1), c.Stats().Hits)
}

func TestGetMissReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	_, ok := c.Get(context.Background(), "nope")
	require.False(t, ok)
	require.Equal(t, int64(1), c.Stats().Misses)
}

func TestL2HitPromotesToL1(t *testing.T) {
	ctx := context.Background()
	blobs, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	cd, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)

	// A short L1TTL lets the entry lapse from L1 while it's still live in L2,
	// simulating an L1 eviction without reaching into the blobstore directly
	// (L2 entries are codec-encoded envelopes now, not raw bytes).
	c := cache.New(cache.Config{Namespace: model.NamespaceDictionary, L1Size: 8, L1TTL: 20 * time.Millisecond}, blobs, cd, nil)
	require.NoError(t, c.Set(ctx, "word:dog", []byte("canine"), time.Hour))

	time.Sleep(40 * time.Millisecond)

	v, ok := c.Get(ctx, "word:dog")
	require.True(t, ok)
	require.Equal(t, []byte("canine"), v)
	require.Equal(t, 1, c.Len())
}

func TestInvalidateRemovesFromBothTiers(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Invalidate(ctx, "k"))
	_, ok := c.Get(ctx, "k")
	require.False(t, ok)
}

func TestSetZeroTTLNeverExpiresInL2(t *testing.T) {
	ctx := context.Background()
	blobs, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	cd, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)
	c := cache.New(cache.Config{Namespace: model.NamespaceDictionary, L1Size: 8, L1TTL: 10 * time.Millisecond}, blobs, cd, nil)

	require.NoError(t, c.Set(ctx, "word:owl", []byte("nocturnal"), 0))
	time.Sleep(30 * time.Millisecond)

	v, ok := c.Get(ctx, "word:owl")
	require.True(t, ok)
	require.Equal(t, []byte("nocturnal"), v)
}

func TestSetEnforcesL2TTLExpiry(t *testing.T) {
	ctx := context.Background()
	blobs, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	cd, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)
	c := cache.New(cache.Config{Namespace: model.NamespaceDictionary, L1Size: 8, L1TTL: 10 * time.Millisecond}, blobs, cd, nil)

	require.NoError(t, c.Set(ctx, "word:moth", []byte("nocturnal too"), 20*time.Millisecond))
	time.Sleep(60 * time.Millisecond)

	_, ok := c.Get(ctx, "word:moth")
	require.False(t, ok, "expected L2 entry to have expired")
}

func TestSetCompressesLargeL2ValuesAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	blobs, err := blobstore.New(t.TempDir(), nil)
	require.NoError(t, err)
	cd, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)
	c := cache.New(cache.Config{Namespace: model.NamespaceDictionary, L1Size: 8, L1TTL: 10 * time.Millisecond}, blobs, cd, nil)

	value := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 1024)
	require.NoError(t, c.Set(ctx, "word:big", value, time.Hour))

	persisted, err := blobs.Get(ctx, model.NamespaceDictionary, "word:big")
	require.NoError(t, err)
	require.Less(t, len(persisted), len(value), "expected L2 envelope to be compressed smaller than the raw value")

	time.Sleep(30 * time.Millisecond) // force L1 eviction so Get must decode from L2
	got, ok := c.Get(ctx, "word:big")
	require.True(t, ok)
	require.Equal(t, value, got)
}
