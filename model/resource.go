// Package model holds the shared value types of the lexicon substrate:
// resource identity, version metadata, content location, cache namespaces,
// and pipeline progress state. Nothing in this package touches storage or
// concurrency — it is pure data, the way teacher's entitystore.go keeps its
// Entity struct free of I/O concerns.
package model

import "time"

// ResourceType is a closed enum naming the kind of chain a resource belongs
// to (spec §3).
type ResourceType string

const (
	ResourceDictionary ResourceType = "dictionary"
	ResourceCorpus     ResourceType = "corpus"
	ResourceLanguage   ResourceType = "language"
	ResourceLiterature ResourceType = "literature"
	ResourceSearch     ResourceType = "search"
	ResourceTrie       ResourceType = "trie"
	ResourceSemantic   ResourceType = "semantic"
)

// Valid reports whether rt is one of the closed enum members.
func (rt ResourceType) Valid() bool {
	switch rt {
	case ResourceDictionary, ResourceCorpus, ResourceLanguage, ResourceLiterature,
		ResourceSearch, ResourceTrie, ResourceSemantic:
		return true
	default:
		return false
	}
}

// ResourceKey names a version chain: (resource_type, resource_id[, discriminator]).
// The discriminator extends the key when multiple independent chains share an
// id — e.g. two SemanticIndex chains for the same corpus_id under different
// embedding model names.
type ResourceKey struct {
	Type          ResourceType
	ID            string
	Discriminator string
}

// String renders a stable textual form, used as the chain identity for
// locking and cache-key derivation.
func (k ResourceKey) String() string {
	if k.Discriminator == "" {
		return string(k.Type) + "/" + k.ID
	}
	return string(k.Type) + "/" + k.ID + "@" + k.Discriminator
}

// CacheNamespace is a closed enum identifying a logical cache (spec §3).
type CacheNamespace string

const (
	NamespaceDictionary CacheNamespace = "dictionary"
	NamespaceCorpus     CacheNamespace = "corpus"
	NamespaceSearch     CacheNamespace = "search"
	NamespaceTrie       CacheNamespace = "trie"
	NamespaceSemantic   CacheNamespace = "semantic"
	NamespaceLiterature CacheNamespace = "literature"
)

// VersionInfo describes one record in a version chain (spec §3, invariants
// I1-I4).
type VersionInfo struct {
	Version       string    `json:"version"`
	DataHash      string    `json:"data_hash"`
	CreatedAt     time.Time `json:"created_at"`
	IsLatest      bool      `json:"is_latest"`
	Supersedes    string    `json:"supersedes,omitempty"`
	SupersededBy  string    `json:"superseded_by,omitempty"`
	ParentVersion string    `json:"parent_version,omitempty"`
	ChangeLog     string    `json:"change_log,omitempty"`
	Dependencies  []string  `json:"dependencies,omitempty"`
}

// CompressionCodec names the algorithm used to compress an external blob.
type CompressionCodec string

const (
	CompressionNone CompressionCodec = "none"
	CompressionZstd CompressionCodec = "zstd"
)

// ContentLocation records either inline bytes or an external blob address
// (spec §3). Exactly one of Inline or (Namespace, Key) is meaningful,
// discriminated by External.
type ContentLocation struct {
	External         bool             `json:"external"`
	Inline           []byte           `json:"inline,omitempty"`
	Namespace        CacheNamespace   `json:"namespace,omitempty"`
	Key              string           `json:"key,omitempty"`
	SizeOriginal     int64            `json:"size_original"`
	SizeCompressed   int64            `json:"size_compressed,omitempty"`
	CompressionCodec CompressionCodec `json:"compression_codec"`
	Encrypted        bool             `json:"encrypted"`
}

// VersionRecord is the full persisted unit returned by the version store:
// header (VersionInfo + ContentLocation + resource identity) plus the raw
// decoded payload bytes available to the caller via Content().
type VersionRecord struct {
	ID       string `json:"id"`
	Key      ResourceKey
	Info     VersionInfo     `json:"info"`
	Location ContentLocation `json:"location"`
	Metadata map[string]any  `json:"metadata,omitempty"`

	// Signature is an optional integrity signature over the canonical
	// payload. The version store persists and reads back this field, but no
	// code in this module sets it, so it is empty on every saved record.
	Signature []byte `json:"signature,omitempty"`

	payload []byte
}

// NewVersionRecord builds a record carrying decoded payload bytes.
func NewVersionRecord(id string, key ResourceKey, info VersionInfo, loc ContentLocation, payload []byte) *VersionRecord {
	return &VersionRecord{ID: id, Key: key, Info: info, Location: loc, payload: payload}
}

// Content returns the decoded payload bytes backing this record.
func (r *VersionRecord) Content() []byte {
	if r == nil {
		return nil
	}
	return r.payload
}

// WithContent returns a shallow copy of r carrying payload as its content.
func (r *VersionRecord) WithContent(payload []byte) *VersionRecord {
	cp := *r
	cp.payload = payload
	return &cp
}
