package trie

import (
	"context"
	"encoding/json"
	"fmt"

	"lexicore/model"
	"lexicore/version"
)

// Store wires the in-memory Index to the version store: a corpus's
// TrieIndex is small enough to travel entirely inline through the version
// chain (spec §4.7's persisted form is just the sorted list plus metadata),
// unlike semantic's embedding matrix which needs an external blob.
type Store struct {
	versions *version.Store
}

// NewStore builds a trie Store bound to a version store.
func NewStore(versions *version.Store) *Store {
	return &Store{versions: versions}
}

func (s *Store) key(corpusID string) model.ResourceKey {
	return model.ResourceKey{Type: model.ResourceTrie, ID: corpusID}
}

// Build constructs an Index and persists it as the latest TrieIndex version
// for corpusID.
func (s *Store) Build(ctx context.Context, corpusID, vocabularyHash string, vocabulary, originalVocabulary []string, frequencies map[string]int) (*Index, error) {
	idx, err := Build(corpusID, vocabularyHash, vocabulary, originalVocabulary, frequencies)
	if err != nil {
		return nil, err
	}
	if _, err := s.versions.Save(ctx, s.key(corpusID), idx.ToPersisted(), version.SaveOptions{}); err != nil {
		return nil, err
	}
	return idx, nil
}

// Load fetches the latest persisted TrieIndex for corpusID and rebuilds its
// in-memory Index, or returns (nil, nil) if none exists.
func (s *Store) Load(ctx context.Context, corpusID string) (*Index, error) {
	rec, err := s.versions.GetLatest(ctx, s.key(corpusID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	var persisted model.TrieIndex
	if err := json.Unmarshal(rec.Content(), &persisted); err != nil {
		return nil, fmt.Errorf("trie: decode persisted index: %w", err)
	}
	return FromPersisted(persisted)
}
