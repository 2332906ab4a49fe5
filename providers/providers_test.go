package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"lexicore/blobstore"
	"lexicore/codec"
	"lexicore/providers"
	"lexicore/version"
)

func newTestStore(t *testing.T) *providers.Store {
	t.Helper()
	ctx := context.Background()
	blobs, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	cdc, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)
	vs, err := version.Open(ctx, filepath.Join(t.TempDir(), "meta.db"), blobs, cdc, version.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { vs.Close() })
	return providers.NewStore(vs, nil)
}

func TestFetchReturnsProviderEntryAndPersistsIt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := providers.NewStatic("stub", map[string]*providers.Entry{
		"apple": {Payload: json.RawMessage(`{"gloss":"a fruit"}`)},
	})

	entry, err := s.Fetch(ctx, p, "apple")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "apple", entry.Word)
	require.Equal(t, "stub", entry.Provider)
}

func TestFetchIsCachedOnSecondCall(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	calls := 0
	p := countingStatic{name: "stub", word: "apple", calls: &calls}

	_, err := s.Fetch(ctx, p, "apple")
	require.NoError(t, err)
	_, err = s.Fetch(ctx, p, "apple")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestFetchMissReturnsNilNil(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := providers.NewStatic("stub", map[string]*providers.Entry{})

	entry, err := s.Fetch(ctx, p, "ghost")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestFetchFailurePersistsErrorMarker(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := failingProvider{name: "stub"}

	_, err := s.Fetch(ctx, p, "apple")
	require.Error(t, err)

	// A subsequent fetch sees the recorded failure and returns no entry
	// without re-invoking the provider (spec §7 "Provider").
	p2 := countingStatic{name: "stub", word: "apple", calls: new(int)}
	entry, err := s.Fetch(ctx, p2, "apple")
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Equal(t, 0, *p2.calls)
}

type countingStatic struct {
	name  string
	word  string
	calls *int
}

func (c countingStatic) Name() string { return c.name }
func (c countingStatic) Fetch(_ context.Context, word string) (*providers.Entry, error) {
	*c.calls++
	if word != c.word {
		return nil, nil
	}
	return &providers.Entry{Payload: json.RawMessage(`{"gloss":"a fruit"}`)}, nil
}

type failingProvider struct{ name string }

func (f failingProvider) Name() string { return f.name }
func (f failingProvider) Fetch(_ context.Context, _ string) (*providers.Entry, error) {
	return nil, errors.New("upstream unavailable")
}
