package semantic

import (
	"context"
	"encoding/json"
	"fmt"

	"lexicore/blobstore"
	"lexicore/embedding"
	"lexicore/model"
	"lexicore/version"
)

// Store wires the in-memory Index to the version store (for SemanticIndex
// metadata) and the blob store (for the embedding matrix), matching the
// persistence split spec §4.9 describes: small structured fields travel
// through the version chain, the embedding matrix travels as a separate
// external blob referenced by EmbeddingBlobKey.
type Store struct {
	versions *version.Store
	blobs    *blobstore.Store
	model    embedding.Model
}

// NewStore builds a semantic Store bound to a single embedding model; the
// model's name is used as the resource discriminator (spec §4.5's
// "discriminator" and §6's "model_name identifier used as the semantic
// index discriminator").
func NewStore(versions *version.Store, blobs *blobstore.Store, mdl embedding.Model) *Store {
	return &Store{versions: versions, blobs: blobs, model: mdl}
}

func (s *Store) key(corpusID string) model.ResourceKey {
	return model.ResourceKey{Type: model.ResourceSemantic, ID: corpusID, Discriminator: s.model.ModelName()}
}

// Build embeds corpusID's vocabulary, persists the embedding matrix blob
// and the SemanticIndex version record, and returns the ready-to-query
// in-memory Index.
func (s *Store) Build(ctx context.Context, corpusID, vocabularyHash string, vocabulary, lemmatized []string) (*Index, error) {
	idx, err := Build(ctx, corpusID, vocabularyHash, vocabulary, lemmatized, s.model)
	if err != nil {
		return nil, err
	}

	persisted, matrix, err := idx.ToPersisted()
	if err != nil {
		return nil, err
	}

	blobKey := corpusID + ":" + s.model.ModelName() + ":" + vocabularyHash
	if len(matrix) > 0 {
		if _, err := s.blobs.Put(ctx, model.NamespaceSemantic, blobKey, matrix); err != nil {
			return nil, fmt.Errorf("semantic: put embedding blob: %w", err)
		}
	}
	persisted.EmbeddingBlobKey = blobKey
	persisted.ANNBlobKey = blobKey // the ANN graph is rebuilt deterministically from the embedding matrix on load

	if _, err := s.versions.Save(ctx, s.key(corpusID), persisted, version.SaveOptions{}); err != nil {
		return nil, err
	}
	return idx, nil
}

// Load fetches the latest SemanticIndex for corpusID and rebuilds its
// in-memory Index, or returns (nil, nil) if none exists.
func (s *Store) Load(ctx context.Context, corpusID string) (*Index, error) {
	rec, err := s.versions.GetLatest(ctx, s.key(corpusID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	var persisted model.SemanticIndex
	if err := json.Unmarshal(rec.Content(), &persisted); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	var matrix []byte
	if persisted.EmbeddingBlobKey != "" {
		matrix, err = s.blobs.Get(ctx, model.NamespaceSemantic, persisted.EmbeddingBlobKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		if matrix == nil {
			return nil, fmt.Errorf("%w: embedding blob missing", ErrCorruptIndex)
		}
	}
	return FromPersisted(persisted, matrix)
}
