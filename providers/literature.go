package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"lexicore/dedup"
	"lexicore/model"
	"lexicore/version"
)

// LiteratureEntry is a successful (or failed) literature-provider fetch
// result for one work, identified by the provider's own work id (e.g. a
// Project Gutenberg text number). Mirrors Entry's shape but keeps the
// literature and dictionary resource chains independent, per
// model.ResourceLiterature/NamespaceLiterature.
type LiteratureEntry struct {
	WorkID    string          `json:"work_id"`
	Provider  string          `json:"provider"`
	Title     string          `json:"title,omitempty"`
	Author    string          `json:"author,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	FetchedAt int64           `json:"fetched_at"`
}

// LiteratureProvider is the external collaborator interface for literature
// sources (spec §6, generalized the way Provider is for dictionary
// sources). A nil, nil return means the provider has no entry for workID.
type LiteratureProvider interface {
	Name() string
	Fetch(ctx context.Context, workID string) (*LiteratureEntry, error)
}

// LiteratureStore caches and version-persists literature-provider fetches
// under model.ResourceLiterature, deduplicating concurrent requests for the
// same (provider, workID) pair. Structured identically to Store; kept as a
// separate type rather than a generic Store[T] because the two resource
// chains (dictionary vs. literature) have independent cache namespaces and
// the spec does not ask for a shared abstraction across them.
type LiteratureStore struct {
	versions *version.Store
	gate     *dedup.Gate
}

// NewLiteratureStore builds a LiteratureStore bound to a version store. gate
// may be nil, in which case a default (no grace-delay) gate is created.
func NewLiteratureStore(versions *version.Store, gate *dedup.Gate) *LiteratureStore {
	if gate == nil {
		gate = dedup.New(0)
	}
	return &LiteratureStore{versions: versions, gate: gate}
}

func (s *LiteratureStore) key(providerName, workID string) model.ResourceKey {
	return model.ResourceKey{Type: model.ResourceLiterature, ID: workID, Discriminator: providerName}
}

// Fetch returns the cached entry for (provider, workID) if one has already
// been persisted, otherwise calls p.Fetch, persists the result (success or
// a recorded failure, spec §7 "Provider"), and returns it. Concurrent
// callers for the same (provider, workID) share one in-flight fetch.
func (s *LiteratureStore) Fetch(ctx context.Context, p LiteratureProvider, workID string) (*LiteratureEntry, error) {
	key := s.key(p.Name(), workID)

	if rec, err := s.versions.GetLatest(ctx, key); err != nil {
		return nil, fmt.Errorf("providers: load cached literature entry: %w", err)
	} else if rec != nil {
		var entry LiteratureEntry
		if err := json.Unmarshal(rec.Content(), &entry); err != nil {
			return nil, fmt.Errorf("providers: decode cached literature entry: %w", err)
		}
		if entry.Payload == nil {
			// A previously recorded failure: the work was tried and failed.
			return nil, nil
		}
		return &entry, nil
	}

	gateKey := dedup.Key("literature-fetch", p.Name(), workID)
	v, err, _ := s.gate.Do(gateKey, func() (any, error) {
		return s.fetchAndPersist(ctx, p, workID, key)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*LiteratureEntry), nil
}

func (s *LiteratureStore) fetchAndPersist(ctx context.Context, p LiteratureProvider, workID string, key model.ResourceKey) (*LiteratureEntry, error) {
	entry, err := p.Fetch(ctx, workID)
	if err != nil {
		failure := LiteratureEntry{WorkID: workID, Provider: p.Name(), FetchedAt: nowUnix()}
		if _, saveErr := s.versions.Save(ctx, key, failure, version.SaveOptions{
			Metadata: map[string]any{"error": err.Error()},
		}); saveErr != nil {
			return nil, fmt.Errorf("providers: literature fetch failed (%w) and persisting the failure also failed: %v", err, saveErr)
		}
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	entry.WorkID = workID
	entry.Provider = p.Name()
	entry.FetchedAt = nowUnix()
	if _, err := s.versions.Save(ctx, key, *entry, version.SaveOptions{}); err != nil {
		return nil, fmt.Errorf("providers: persist fetched literature entry: %w", err)
	}
	return entry, nil
}
