// Package providers implements the provider connector interface from
// spec §6: a narrow fetch(word) -> DictionaryEntry? boundary the core
// caches and persists without knowing how any given provider is
// implemented (scraper, API client, local OS dictionary service, bulk
// import). The dictionary-domain data model itself is out of scope (spec
// §1 Non-goals: "the dictionary-domain data model beyond what the cache
// keys see"), so Entry carries only what the core needs to cache and
// version a fetch result; provider authors attach whatever payload shape
// they want as opaque JSON. Grounded on the multi-provider merge pipeline
// in other_examples/.../backend_v4-internal-app-seeder-pipeline.go (named
// providers fetched independently and funneled through one coordinator).
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lexicore/dedup"
	"lexicore/model"
	"lexicore/version"
)

// Entry is a successful (or failed) provider fetch result for one word.
type Entry struct {
	Word      string          `json:"word"`
	Provider  string          `json:"provider"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	FetchedAt int64           `json:"fetched_at"`
}

// Provider is the external collaborator interface consumed by the core
// (spec §6). A nil, nil return means the provider has no entry for word;
// rate limiting and retry policy are the provider's own concern.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, word string) (*Entry, error)
}

// Store caches and version-persists provider fetches, deduplicating
// concurrent requests for the same (provider, word) pair.
type Store struct {
	versions *version.Store
	gate     *dedup.Gate
}

// NewStore builds a provider Store bound to a version store. gate may be
// nil, in which case a default (no grace-delay) gate is created.
func NewStore(versions *version.Store, gate *dedup.Gate) *Store {
	if gate == nil {
		gate = dedup.New(0)
	}
	return &Store{versions: versions, gate: gate}
}

func (s *Store) key(providerName, word string) model.ResourceKey {
	return model.ResourceKey{Type: model.ResourceDictionary, ID: word, Discriminator: providerName}
}

// Fetch returns the cached entry for (provider, word) if one has already
// been persisted, otherwise calls p.Fetch, persists the result (success or
// a recorded failure, spec §7 "Provider"), and returns it. Concurrent
// callers for the same (provider, word) share one in-flight fetch.
func (s *Store) Fetch(ctx context.Context, p Provider, word string) (*Entry, error) {
	key := s.key(p.Name(), word)

	if rec, err := s.versions.GetLatest(ctx, key); err != nil {
		return nil, fmt.Errorf("providers: load cached entry: %w", err)
	} else if rec != nil {
		var entry Entry
		if err := json.Unmarshal(rec.Content(), &entry); err != nil {
			return nil, fmt.Errorf("providers: decode cached entry: %w", err)
		}
		if entry.Payload == nil {
			// A previously recorded failure: the word was tried and failed.
			// The marker does not expire, so this Store does not call the
			// provider again for this (provider, word).
			return nil, nil
		}
		return &entry, nil
	}

	gateKey := dedup.Key("provider-fetch", p.Name(), word)
	v, err, _ := s.gate.Do(gateKey, func() (any, error) {
		return s.fetchAndPersist(ctx, p, word, key)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*Entry), nil
}

func (s *Store) fetchAndPersist(ctx context.Context, p Provider, word string, key model.ResourceKey) (*Entry, error) {
	entry, err := p.Fetch(ctx, word)
	if err != nil {
		// Persist an error-marker version so subsequent lookups know the
		// provider was tried and failed (spec §7), without blocking the
		// caller's error return.
		failure := Entry{Word: word, Provider: p.Name(), FetchedAt: nowUnix()}
		if _, saveErr := s.versions.Save(ctx, key, failure, version.SaveOptions{
			Metadata: map[string]any{"error": err.Error()},
		}); saveErr != nil {
			return nil, fmt.Errorf("providers: fetch failed (%w) and persisting the failure also failed: %v", err, saveErr)
		}
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	entry.Word = word
	entry.Provider = p.Name()
	entry.FetchedAt = nowUnix()
	if _, err := s.versions.Save(ctx, key, *entry, version.SaveOptions{}); err != nil {
		return nil, fmt.Errorf("providers: persist fetched entry: %w", err)
	}
	return entry, nil
}

func nowUnix() int64 { return time.Now().Unix() }
