// Package embedding defines the embedding-model collaborator interface from
// spec §6 and a deterministic local stand-in used by tests and examples.
// The concrete ML model is explicitly out of scope (spec §1 Non-goals); the
// core only depends on this interface.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// Model is the external collaborator interface consumed by the semantic
// index (spec §6): embed(text) -> vector, embed_batch(texts) -> matrix,
// with a fixed output dimension and a model_name discriminator. Expected
// to be thread-safe — the core calls it from a worker pool (spec §5).
type Model interface {
	ModelName() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Hashing is a deterministic, dependency-free stand-in Model: it derives a
// fixed-dimension unit vector from the SHA-256 digest of its input. It
// produces no semantic structure whatsoever — it exists so the semantic
// index, its cache-coherence rules, and its ANN plumbing can be built and
// tested end-to-end without a real ML model wired in, matching spec §6's
// framing of the embedding model as an external collaborator behind a
// narrow interface.
type Hashing struct {
	name string
	dim  int
}

// NewHashing builds a Hashing model with the given discriminator name and
// output dimension.
func NewHashing(name string, dim int) *Hashing {
	if dim <= 0 {
		dim = 32
	}
	return &Hashing{name: name, dim: dim}
}

func (h *Hashing) ModelName() string { return h.name }
func (h *Hashing) Dimension() int    { return h.dim }

func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	seed := []byte(text)
	for i := range vec {
		block := sha256.Sum256(append(seed, byte(i), byte(i>>8)))
		v := int64(binary.BigEndian.Uint64(block[:8]))
		vec[i] = float32(v) / float32(math.MaxInt64)
	}
	normalize(vec)
	return vec, nil
}

func (h *Hashing) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embedding: batch item %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// normalize scales v to unit length in place, the step spec §4.9 requires
// ("Normalize vectors to unit length") before ANN indexing.
func normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
