// Package codec implements the content codec from spec §4.1: canonicalize,
// hash, optionally compress, and tag a payload so decode is self-describing.
// It is grounded on teacher's entitystore.go, which hashes a dag-cbor
// encoding of entity data with BLAKE3 before writing it to the block store;
// here the canonical form is JSON with sorted map keys (the payloads in this
// system are plain Go values, not IPLD nodes) and the hash is SHA-256, as
// spec §4.1 mandates.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zstd"

	"lexicore/model"
)

// ErrCorruptContent is returned by Decode when the codec tag is unknown,
// decompression fails, or the structural parse fails (spec §4.1).
var ErrCorruptContent = errors.New("codec: corrupt content")

// DefaultCompressionThreshold is the recommended 4 KiB threshold above which
// compression is applied (spec §4.1).
const DefaultCompressionThreshold = 4 * 1024

// Codec canonicalizes, hashes, and optionally compresses payloads.
type Codec struct {
	compressionThreshold int
	encoder              *zstd.Encoder
	decoder              *zstd.Decoder
}

// New builds a Codec. compressionThreshold <= 0 uses DefaultCompressionThreshold.
func New(compressionThreshold int) (*Codec, error) {
	if compressionThreshold <= 0 {
		compressionThreshold = DefaultCompressionThreshold
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: new zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: new zstd decoder: %w", err)
	}
	return &Codec{compressionThreshold: compressionThreshold, encoder: enc, decoder: dec}, nil
}

// Encode canonicalizes v, hashes the canonical bytes, and compresses them if
// they exceed the compression threshold. It returns the on-wire bytes, the
// content hash (hex SHA-256 of the *canonical, uncompressed* bytes per spec
// I3: "data_hash is deterministic over payload content only"), and the
// compression codec actually used.
func (c *Codec) Encode(v any) (wire []byte, contentHash string, codecUsed model.CompressionCodec, err error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return nil, "", "", fmt.Errorf("codec: canonicalize: %w", err)
	}

	sum := sha256.Sum256(canonical)
	contentHash = hex.EncodeToString(sum[:])

	if len(canonical) <= c.compressionThreshold {
		return canonical, contentHash, model.CompressionNone, nil
	}

	compressed := c.encoder.EncodeAll(canonical, nil)
	return compressed, contentHash, model.CompressionZstd, nil
}

// Decode reverses Encode given the codec tag used at encode time, and
// unmarshals the result into out.
func (c *Codec) Decode(wire []byte, codecUsed model.CompressionCodec, out any) error {
	raw, err := c.DecodeRaw(wire, codecUsed)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", ErrCorruptContent, err)
	}
	return nil
}

// DecodeRaw reverses compression only, returning the canonical bytes without
// unmarshaling them into a Go value.
func (c *Codec) DecodeRaw(wire []byte, codecUsed model.CompressionCodec) ([]byte, error) {
	switch codecUsed {
	case model.CompressionNone, "":
		return wire, nil
	case model.CompressionZstd:
		raw, err := c.decoder.DecodeAll(wire, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrCorruptContent, err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression codec %q", ErrCorruptContent, codecUsed)
	}
}

// Canonicalize produces a deterministic byte form of v: JSON with
// recursively sorted map keys, independent of field insertion order or
// timestamps embedded by the caller (callers are expected to have already
// dropped volatile fields, per spec §4.1, before calling Canonicalize).
func Canonicalize(v any) ([]byte, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the hex SHA-256 digest of v's canonical form, without
// encoding or compressing it. Used by components that need the data_hash
// without persisting anything (e.g. corpus vocabulary_hash).
func Hash(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("codec: remarshal: %w", err)
	}
	return generic, nil
}

func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
