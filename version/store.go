// Package version implements the version store from spec §4.5: an
// append-only metadata chain per (resource_type, resource_id[,
// discriminator]) with an is_latest invariant, per-resource locking, inline
// vs. external content placement, cascade deletion, and two-tier cache
// fronting. Grounded on teacher's repository.go (commit/head/version-chain
// bookkeeping) and entitystore.go (hash-then-place-then-record ordering),
// generalized from an IPLD/CID-addressed DAG to a plain SQLite metadata
// table plus the blobstore/codec pair from this module.
package version

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lexicore/blobstore"
	"lexicore/cache"
	"lexicore/codec"
	"lexicore/lock"

	"lexicore/model"
)

// DefaultInlineThreshold is the recommended inline/external size cutover
// (spec §3, §9: "recommended 64 KiB").
const DefaultInlineThreshold = 64 * 1024

// DependentsFunc returns the resource keys that must be deleted when the
// resource named by (resourceType, resourceID) is deleted with cascade=true
// (spec §4.5 "Cascade").
type DependentsFunc func(resourceID string) []model.ResourceKey

// Config controls store-wide policy. Per-call overrides are passed via
// SaveOptions.
type Config struct {
	InlineThresholdBytes int
	L1Size               int
	L1TTL                time.Duration
	// L2TTL bounds how long a cache entry survives in the L2 filesystem tier
	// (spec §4.3's set(ns, key, value, ttl)); <= 0 means L2 entries never expire.
	L2TTL time.Duration
}

// SaveOptions carries the per-call knobs from spec §4.5's save signature.
type SaveOptions struct {
	// ForceRebuild skips the dedup-by-hash short circuit.
	ForceRebuild bool
	// Version explicitly names the new version string; if empty, the store
	// bumps the latest version automatically.
	Version string
	// Metadata is stored alongside the record, opaque to the store.
	Metadata map[string]any
	// Dependencies lists version record ids this version logically depends on.
	Dependencies []string
}

// Store is the version store. One Store instance is meant to be shared
// process-wide.
type Store struct {
	db     *sql.DB
	blobs  *blobstore.Store
	codec  *codec.Codec
	locks  *lock.Registry
	clock  *clock
	caches map[model.CacheNamespace]*cache.Cache
	log    *zap.Logger
	cfg    Config

	dependents map[model.ResourceType]DependentsFunc
}

// Open opens (creating if absent) the SQLite-backed metadata store at
// dbPath and wires it to blobs/codec for content, building one Cache per
// namespace.
func Open(ctx context.Context, dbPath string, blobs *blobstore.Store, cdc *codec.Codec, cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.InlineThresholdBytes <= 0 {
		cfg.InlineThresholdBytes = DefaultInlineThreshold
	}

	db, err := openDB(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("version: open db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("version: apply schema: %w", err)
	}

	s := &Store{
		db:         db,
		blobs:      blobs,
		codec:      cdc,
		locks:      lock.New(),
		clock:      newClock(),
		caches:     make(map[model.CacheNamespace]*cache.Cache),
		log:        log,
		cfg:        cfg,
		dependents: make(map[model.ResourceType]DependentsFunc),
	}
	for _, ns := range []model.CacheNamespace{
		model.NamespaceDictionary, model.NamespaceCorpus, model.NamespaceSearch,
		model.NamespaceTrie, model.NamespaceSemantic, model.NamespaceLiterature,
	} {
		s.caches[ns] = cache.New(cache.Config{Namespace: ns, L1Size: cfg.L1Size, L1TTL: cfg.L1TTL}, blobs, cdc, log)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RegisterDependents installs the cascade function for resourceType. Used
// by corpus (spec §4.6) to declare that SearchIndex/TrieIndex/SemanticIndex
// records depend on a Corpus.
func (s *Store) RegisterDependents(resourceType model.ResourceType, fn DependentsFunc) {
	s.dependents = cloneAndSet(s.dependents, resourceType, fn)
}

func cloneAndSet(m map[model.ResourceType]DependentsFunc, k model.ResourceType, v DependentsFunc) map[model.ResourceType]DependentsFunc {
	m[k] = v
	return m
}

// namespaceFor maps a resource type onto its logical cache namespace (spec
// §3's CacheNamespace enum has no dedicated "language" member, so language
// chains share the dictionary namespace — they are dictionary-shaped
// lookups keyed the same way).
func namespaceFor(rt model.ResourceType) (model.CacheNamespace, error) {
	switch rt {
	case model.ResourceDictionary, model.ResourceLanguage:
		return model.NamespaceDictionary, nil
	case model.ResourceCorpus:
		return model.NamespaceCorpus, nil
	case model.ResourceLiterature:
		return model.NamespaceLiterature, nil
	case model.ResourceSearch:
		return model.NamespaceSearch, nil
	case model.ResourceTrie:
		return model.NamespaceTrie, nil
	case model.ResourceSemantic:
		return model.NamespaceSemantic, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownResourceType, rt)
	}
}

// cacheEnvelope is the wire form cached in L1/L2: the record header plus its
// decoded content bytes (VersionRecord.payload is unexported, so it travels
// separately here).
type cacheEnvelope struct {
	Header  model.VersionRecord `json:"header"`
	Content []byte              `json:"content"`
}

func cacheKey(key model.ResourceKey, suffix string) string {
	return key.String() + "@" + suffix
}

func (s *Store) putCache(ctx context.Context, ns model.CacheNamespace, k string, rec *model.VersionRecord) {
	env := cacheEnvelope{Header: *rec, Content: rec.Content()}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := s.caches[ns].Set(ctx, k, raw, s.cfg.L2TTL); err != nil {
		s.log.Warn("version cache set failed", zap.Error(err))
	}
}

func (s *Store) getCache(ctx context.Context, ns model.CacheNamespace, k string) (*model.VersionRecord, bool) {
	raw, ok := s.caches[ns].Get(ctx, k)
	if !ok {
		return nil, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	rec := env.Header
	return rec.WithContent(env.Content), true
}

func (s *Store) invalidateChain(ctx context.Context, ns model.CacheNamespace, key model.ResourceKey) {
	_ = s.caches[ns].Invalidate(ctx, cacheKey(key, "latest"))
}

// Save implements spec §4.5's save algorithm.
func (s *Store) Save(ctx context.Context, key model.ResourceKey, payload any, opts SaveOptions) (*model.VersionRecord, error) {
	if !key.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResourceType, key.Type)
	}
	ns, err := namespaceFor(key.Type)
	if err != nil {
		return nil, err
	}

	canonical, err := codec.Canonicalize(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalize: %v", ErrPersistence, err)
	}
	wire, hash, codecUsed, err := s.codec.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}

	if !opts.ForceRebuild {
		if latest, err := s.getLatestRow(ctx, key); err == nil && latest != nil && latest.dataHash == hash {
			if rec, derr := s.materialize(ctx, latest); derr == nil {
				return rec, nil
			}
		}
	}

	chainKey := key.String()
	var result *model.VersionRecord
	err = s.locks.WithLock(chainKey, func() error {
		latest, lerr := s.getLatestRow(ctx, key)
		if lerr != nil {
			return lerr
		}
		if !opts.ForceRebuild && latest != nil && latest.dataHash == hash {
			rec, derr := s.materialize(ctx, latest)
			if derr == nil {
				result = rec
				return nil
			}
		}

		newVersion := opts.Version
		if newVersion == "" {
			if latest != nil {
				newVersion = bumpVersion(latest.version)
			} else {
				newVersion = "1.0.0"
			}
		} else if latest != nil {
			for _, v := range s.listVersionStrings(ctx, key) {
				if v == newVersion {
					return fmt.Errorf("%w: version %s already exists for %s", ErrVersionConflict, newVersion, chainKey)
				}
			}
		}

		seq := s.clock.next(chainKey, 0)
		id := fmt.Sprintf("%s-%020d-%s", chainKey, seq, uuid.NewString())

		loc := model.ContentLocation{
			SizeOriginal:     int64(len(canonical)),
			CompressionCodec: codecUsed,
		}
		if len(wire) >= s.cfg.InlineThresholdBytes {
			blobLoc, berr := s.blobs.Put(ctx, ns, hash, wire)
			if berr != nil {
				return fmt.Errorf("%w: blob put: %v", ErrPersistence, berr)
			}
			loc.External = true
			loc.Namespace = ns
			loc.Key = hash
			loc.SizeCompressed = blobLoc.Size
		} else {
			loc.Inline = wire
			loc.SizeCompressed = int64(len(wire))
		}

		now := time.Now()
		info := model.VersionInfo{
			Version:      newVersion,
			DataHash:     hash,
			CreatedAt:    now,
			IsLatest:     true,
			Dependencies: opts.Dependencies,
		}
		if latest != nil {
			info.Supersedes = latest.id
			info.ParentVersion = latest.version
		}

		rec := model.NewVersionRecord(id, key, info, loc, canonical)
		rec.Metadata = opts.Metadata

		if ierr := s.insertRow(ctx, rec); ierr != nil {
			if loc.External {
				s.blobs.ScheduleCleanup(ns, loc.Key)
			}
			return fmt.Errorf("%w: insert: %v", ErrPersistence, ierr)
		}
		if latest != nil {
			if uerr := s.demote(ctx, latest.id, id); uerr != nil {
				return fmt.Errorf("%w: demote previous head: %v", ErrPersistence, uerr)
			}
		}

		s.invalidateChain(ctx, ns, key)
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetLatest returns the current chain head, or nil if the chain is empty.
func (s *Store) GetLatest(ctx context.Context, key model.ResourceKey) (*model.VersionRecord, error) {
	ns, err := namespaceFor(key.Type)
	if err != nil {
		return nil, err
	}
	ck := cacheKey(key, "latest")
	if rec, ok := s.getCache(ctx, ns, ck); ok {
		return rec, nil
	}

	row, err := s.getLatestRow(ctx, key)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	rec, err := s.materialize(ctx, row)
	if err != nil {
		return nil, err
	}
	s.putCache(ctx, ns, ck, rec)
	return rec, nil
}

// GetByVersion returns the record for an explicit version string.
func (s *Store) GetByVersion(ctx context.Context, key model.ResourceKey, version string) (*model.VersionRecord, error) {
	ns, err := namespaceFor(key.Type)
	if err != nil {
		return nil, err
	}
	ck := cacheKey(key, "v:"+version)
	if rec, ok := s.getCache(ctx, ns, ck); ok {
		return rec, nil
	}
	row, err := s.queryOneRow(ctx, `SELECT `+rowColumns+` FROM versions
		WHERE resource_type=? AND resource_id=? AND discriminator=? AND version=?`,
		string(key.Type), key.ID, key.Discriminator, version)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	rec, err := s.materialize(ctx, row)
	if err != nil {
		return nil, err
	}
	s.putCache(ctx, ns, ck, rec)
	return rec, nil
}

// GetByHash returns the record matching data_hash for the chain, if any.
func (s *Store) GetByHash(ctx context.Context, key model.ResourceKey, dataHash string) (*model.VersionRecord, error) {
	row, err := s.queryOneRow(ctx, `SELECT `+rowColumns+` FROM versions
		WHERE resource_type=? AND resource_id=? AND discriminator=? AND data_hash=?`,
		string(key.Type), key.ID, key.Discriminator, dataHash)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return s.materialize(ctx, row)
}

// ListVersions returns every version string in the chain, oldest first.
func (s *Store) ListVersions(ctx context.Context, key model.ResourceKey) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM versions
		WHERE resource_type=? AND resource_id=? AND discriminator=?
		ORDER BY created_at ASC`, string(key.Type), key.ID, key.Discriminator)
	if err != nil {
		return nil, fmt.Errorf("%w: list versions: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrPersistence, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) listVersionStrings(ctx context.Context, key model.ResourceKey) []string {
	vs, err := s.ListVersions(ctx, key)
	if err != nil {
		return nil
	}
	return vs
}

// History returns every record in the chain, oldest first — a convenience
// walk in the spirit of teacher's repository.go Commit/LoadHead traversal.
func (s *Store) History(ctx context.Context, key model.ResourceKey) ([]*model.VersionRecord, error) {
	versions, err := s.ListVersions(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]*model.VersionRecord, 0, len(versions))
	for _, v := range versions {
		rec, err := s.GetByVersion(ctx, key, v)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// DeleteVersion removes one record and patches chain neighbors (spec §4.5
// "Delete"). Returns false if the version did not exist.
func (s *Store) DeleteVersion(ctx context.Context, key model.ResourceKey, version string) (bool, error) {
	ns, err := namespaceFor(key.Type)
	if err != nil {
		return false, err
	}
	chainKey := key.String()
	var deleted bool
	err = s.locks.WithLock(chainKey, func() error {
		row, err := s.queryOneRow(ctx, `SELECT `+rowColumns+` FROM versions
			WHERE resource_type=? AND resource_id=? AND discriminator=? AND version=?`,
			string(key.Type), key.ID, key.Discriminator, version)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}

		if row.locExternal {
			if err := s.blobs.Delete(ctx, ns, row.locKey); err != nil {
				return fmt.Errorf("%w: delete blob: %v", ErrPersistence, err)
			}
		}

		if _, err := s.db.ExecContext(ctx, `DELETE FROM versions WHERE id=?`, row.id); err != nil {
			return fmt.Errorf("%w: delete row: %v", ErrPersistence, err)
		}

		if row.isLatest {
			if row.supersedes != "" {
				if err := s.promote(ctx, row.supersedes, row.supersededBy); err != nil {
					return fmt.Errorf("%w: promote predecessor: %v", ErrPersistence, err)
				}
			}
		} else {
			if err := s.relink(ctx, row.supersedes, row.supersededBy); err != nil {
				return fmt.Errorf("%w: relink neighbors: %v", ErrPersistence, err)
			}
		}

		s.invalidateChain(ctx, ns, key)
		deleted = true
		return nil
	})
	return deleted, err
}

// DeleteResource deletes every version in the chain. If cascade is true and
// a DependentsFunc is registered for key.Type, dependents are deleted
// (recursively) first (spec §4.5 "Cascade").
func (s *Store) DeleteResource(ctx context.Context, key model.ResourceKey, cascade bool) error {
	if cascade {
		if fn, ok := s.dependents[key.Type]; ok {
			for _, dep := range fn(key.ID) {
				if err := s.DeleteResource(ctx, dep, cascade); err != nil {
					return err
				}
			}
		}
	}
	versions, err := s.ListVersions(ctx, key)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if _, err := s.DeleteVersion(ctx, key, v); err != nil {
			return err
		}
	}
	return nil
}

func bumpVersion(v string) string {
	parts := strings.Split(v, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	patch, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return v + ".1"
	}
	parts[len(parts)-1] = strconv.Itoa(patch + 1)
	return strings.Join(parts, ".")
}

func (s *Store) materialize(ctx context.Context, row *dbRow) (*model.VersionRecord, error) {
	var content []byte
	if row.locExternal {
		ns, err := namespaceFor(row.resourceType())
		if err != nil {
			return nil, err
		}
		wire, err := s.blobs.Get(ctx, ns, row.locKey)
		if err != nil {
			return nil, fmt.Errorf("%w: read blob: %v", ErrPersistence, err)
		}
		if wire == nil {
			return nil, fmt.Errorf("%w: blob missing for %s", codec.ErrCorruptContent, row.id)
		}
		content, err = s.codec.DecodeRaw(wire, row.locCodec)
		if err != nil {
			return nil, err
		}
	} else {
		raw, err := s.codec.DecodeRaw(row.locInline, row.locCodec)
		if err != nil {
			return nil, err
		}
		content = raw
	}

	rec := model.NewVersionRecord(row.id, row.key(), row.info(), row.location(), content)
	if len(row.metadata) > 0 {
		var meta map[string]any
		if err := json.Unmarshal(row.metadata, &meta); err == nil {
			rec.Metadata = meta
		}
	}
	rec.Signature = row.signature
	return rec, nil
}
