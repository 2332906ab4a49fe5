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

func newTestLiteratureStore(t *testing.T) *providers.LiteratureStore {
	t.Helper()
	ctx := context.Background()
	blobs, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	cdc, err := codec.New(codec.DefaultCompressionThreshold)
	require.NoError(t, err)
	vs, err := version.Open(ctx, filepath.Join(t.TempDir(), "meta.db"), blobs, cdc, version.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { vs.Close() })
	return providers.NewLiteratureStore(vs, nil)
}

func TestLiteratureFetchReturnsEntryAndPersistsIt(t *testing.T) {
	ctx := context.Background()
	s := newTestLiteratureStore(t)
	p := stubLiteratureProvider{name: "stub", workID: "1342", title: "Pride and Prejudice"}

	entry, err := s.Fetch(ctx, p, "1342")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "1342", entry.WorkID)
	require.Equal(t, "stub", entry.Provider)
	require.Equal(t, "Pride and Prejudice", entry.Title)
}

func TestLiteratureFetchIsCachedOnSecondCall(t *testing.T) {
	ctx := context.Background()
	s := newTestLiteratureStore(t)
	calls := 0
	p := countingLiteratureProvider{name: "stub", workID: "1342", calls: &calls}

	_, err := s.Fetch(ctx, p, "1342")
	require.NoError(t, err)
	_, err = s.Fetch(ctx, p, "1342")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestLiteratureFetchMissReturnsNilNil(t *testing.T) {
	ctx := context.Background()
	s := newTestLiteratureStore(t)
	p := stubLiteratureProvider{name: "stub", workID: "1342"}

	entry, err := s.Fetch(ctx, p, "99999999")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestLiteratureFetchFailurePersistsErrorMarker(t *testing.T) {
	ctx := context.Background()
	s := newTestLiteratureStore(t)
	p := failingLiteratureProvider{name: "stub"}

	_, err := s.Fetch(ctx, p, "1342")
	require.Error(t, err)

	p2 := countingLiteratureProvider{name: "stub", workID: "1342", calls: new(int)}
	entry, err := s.Fetch(ctx, p2, "1342")
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Equal(t, 0, *p2.calls)
}

type stubLiteratureProvider struct {
	name   string
	workID string
	title  string
}

func (s stubLiteratureProvider) Name() string { return s.name }
func (s stubLiteratureProvider) Fetch(_ context.Context, workID string) (*providers.LiteratureEntry, error) {
	if workID != s.workID {
		return nil, nil
	}
	payload, _ := json.Marshal(map[string]string{"title": s.title})
	return &providers.LiteratureEntry{Title: s.title, Payload: payload}, nil
}

type countingLiteratureProvider struct {
	name   string
	workID string
	calls  *int
}

func (c countingLiteratureProvider) Name() string { return c.name }
func (c countingLiteratureProvider) Fetch(_ context.Context, workID string) (*providers.LiteratureEntry, error) {
	*c.calls++
	if workID != c.workID {
		return nil, nil
	}
	return &providers.LiteratureEntry{Title: "cached", Payload: json.RawMessage(`{"title":"cached"}`)}, nil
}

type failingLiteratureProvider struct{ name string }

func (f failingLiteratureProvider) Name() string { return f.name }
func (f failingLiteratureProvider) Fetch(_ context.Context, _ string) (*providers.LiteratureEntry, error) {
	return nil, errors.New("upstream unavailable")
}
