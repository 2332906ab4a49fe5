// Package cache implements the two-tier cache from spec §4.3: an L1
// in-memory bounded+TTL cache per namespace backed by
// hashicorp/golang-lru/v2, falling through to an L2 filesystem-backed store
// (blobstore, via codec) on miss. Grounded on teacher's entitystore.go,
// which layers an in-memory LRU in front of the durable block store the
// same way.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"lexicore/blobstore"
	"lexicore/codec"
	"lexicore/model"
)

// Stats tracks per-namespace cache activity (spec §4.3).
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Sets      int64
}

// Config controls one namespace's L1 sizing.
type Config struct {
	Namespace model.CacheNamespace
	L1Size    int
	L1TTL     time.Duration
}

// Cache is a two-tier (in-memory + filesystem) byte cache scoped to one
// logical namespace.
type Cache struct {
	ns    model.CacheNamespace
	l1    *lru.LRU[string, []byte]
	blobs *blobstore.Store
	codec *codec.Codec
	log   *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds a Cache for namespace ns, backed by blobs for L2 and codec for
// compression of L2 entries.
func New(cfg Config, blobs *blobstore.Store, c *codec.Codec, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	size := cfg.L1Size
	if size <= 0 {
		size = 1024
	}
	ttl := cfg.L1TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	cache := &Cache{ns: cfg.Namespace, blobs: blobs, codec: c, log: log}
	cache.l1 = lru.NewLRU[string, []byte](size, func(key string, value []byte) {
		cache.mu.Lock()
		cache.stats.Evictions++
		cache.mu.Unlock()
	}, ttl)
	return cache
}

// l2Envelope is what's actually persisted in L2 (spec §4.3: "backed by the
// external blob store with a TTL recorded alongside the value. Values are
// codec-encoded as in §4.1."): the codec-encoded value plus the expiry
// enforced on read.
type l2Envelope struct {
	ExpiresAt int64                  `json:"expires_at,omitempty"` // unix nanos; 0 means no expiry
	Codec     model.CompressionCodec `json:"codec"`
	Wire      []byte                 `json:"wire"`
}

func (e *l2Envelope) expired(now time.Time) bool {
	return e.ExpiresAt != 0 && now.UnixNano() >= e.ExpiresAt
}

// Get returns the raw bytes for key, checking L1 then falling back to L2.
// An L2 hit is promoted back into L1. Returns (nil, false) on a full miss,
// a stale (expired) L2 entry, or a corrupt L2 envelope — the last two evict
// the blob so a future write starts clean.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.l1.Get(key); ok {
		c.mu.Lock()
		c.stats.Hits++
		c.mu.Unlock()
		return v, true
	}

	raw, err := c.blobs.Get(ctx, c.ns, key)
	if err != nil {
		c.log.Warn("cache L2 read failed", zap.String("namespace", string(c.ns)), zap.String("key", key), zap.Error(err))
	}
	if raw == nil {
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}

	var env l2Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Warn("cache L2 envelope corrupt, evicting", zap.String("namespace", string(c.ns)), zap.String("key", key), zap.Error(err))
		_ = c.blobs.Delete(ctx, c.ns, key)
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}
	if env.expired(time.Now()) {
		_ = c.blobs.Delete(ctx, c.ns, key)
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}

	var value []byte
	if err := c.codec.Decode(env.Wire, env.Codec, &value); err != nil {
		c.log.Warn("cache L2 decode failed, evicting", zap.String("namespace", string(c.ns)), zap.String("key", key), zap.Error(err))
		_ = c.blobs.Delete(ctx, c.ns, key)
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	c.l1.Add(key, value)
	return value, true
}

// Set writes value to L1 (governed by the namespace's L1TTL) and to L2
// (spec §4.3's set(ns, key, value, ttl)): ttl <= 0 means the L2 entry never
// expires. The value is codec-encoded before it reaches the blobstore, so
// large cached values (e.g. a SemanticIndex's embedding matrix) are
// compressed the same way a version-store payload is.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.l1.Add(key, value)

	wire, _, codecUsed, err := c.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("cache: encode L2 value: %w", err)
	}
	env := l2Envelope{Codec: codecUsed, Wire: wire}
	if ttl > 0 {
		env.ExpiresAt = time.Now().Add(ttl).UnixNano()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("cache: marshal L2 envelope: %w", err)
	}
	if _, err := c.blobs.Put(ctx, c.ns, key, raw); err != nil {
		return err
	}
	c.mu.Lock()
	c.stats.Sets++
	c.mu.Unlock()
	return nil
}

// Invalidate removes key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.l1.Remove(key)
	return c.blobs.Delete(ctx, c.ns, key)
}

// Stats returns a snapshot of this cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len reports the current L1 entry count.
func (c *Cache) Len() int {
	return c.l1.Len()
}
