package version

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lexicore/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS versions (
	id TEXT PRIMARY KEY,
	resource_type TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	discriminator TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL,
	data_hash TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	is_latest INTEGER NOT NULL,
	supersedes TEXT NOT NULL DEFAULT '',
	superseded_by TEXT NOT NULL DEFAULT '',
	parent_version TEXT NOT NULL DEFAULT '',
	change_log TEXT NOT NULL DEFAULT '',
	dependencies TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	signature BLOB,
	loc_external INTEGER NOT NULL DEFAULT 0,
	loc_namespace TEXT NOT NULL DEFAULT '',
	loc_key TEXT NOT NULL DEFAULT '',
	loc_inline BLOB,
	loc_size_original INTEGER NOT NULL DEFAULT 0,
	loc_size_compressed INTEGER NOT NULL DEFAULT 0,
	loc_codec TEXT NOT NULL DEFAULT 'none',
	loc_encrypted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_versions_latest ON versions(resource_type, resource_id, discriminator, is_latest);
CREATE INDEX IF NOT EXISTS idx_versions_hash ON versions(resource_type, resource_id, discriminator, data_hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_chain_version ON versions(resource_type, resource_id, discriminator, version);
`

const rowColumns = `id, resource_type, resource_id, discriminator, version, data_hash, created_at,
	is_latest, supersedes, superseded_by, parent_version, change_log, dependencies, metadata,
	signature, loc_external, loc_namespace, loc_key, loc_inline, loc_size_original,
	loc_size_compressed, loc_codec, loc_encrypted`

// dbRow is the flat row shape backing a model.VersionRecord.
type dbRow struct {
	id              string
	resType         string
	resID           string
	discriminator   string
	version         string
	dataHash        string
	createdAt       int64
	isLatest        bool
	supersedes      string
	supersededBy    string
	parentVersion   string
	changeLog       string
	dependencies    []byte
	metadata        []byte
	signature       []byte
	locExternal     bool
	locNamespace    string
	locKey          string
	locInline       []byte
	locSizeOriginal int64
	locSizeComp     int64
	locCodec        model.CompressionCodec
	locEncrypted    bool
}

func (r *dbRow) resourceType() model.ResourceType { return model.ResourceType(r.resType) }

func (r *dbRow) key() model.ResourceKey {
	return model.ResourceKey{Type: r.resourceType(), ID: r.resID, Discriminator: r.discriminator}
}

func (r *dbRow) info() model.VersionInfo {
	var deps []string
	_ = json.Unmarshal(r.dependencies, &deps)
	return model.VersionInfo{
		Version:       r.version,
		DataHash:      r.dataHash,
		CreatedAt:     epochToTime(r.createdAt),
		IsLatest:      r.isLatest,
		Supersedes:    r.supersedes,
		SupersededBy:  r.supersededBy,
		ParentVersion: r.parentVersion,
		ChangeLog:     r.changeLog,
		Dependencies:  deps,
	}
}

func (r *dbRow) location() model.ContentLocation {
	return model.ContentLocation{
		External:         r.locExternal,
		Inline:           r.locInline,
		Namespace:        model.CacheNamespace(r.locNamespace),
		Key:              r.locKey,
		SizeOriginal:     r.locSizeOriginal,
		SizeCompressed:   r.locSizeComp,
		CompressionCodec: r.locCodec,
		Encrypted:        r.locEncrypted,
	}
}

func scanRow(scanner interface {
	Scan(dest ...any) error
}) (*dbRow, error) {
	var r dbRow
	var isLatest, locExternal, locEncrypted int
	if err := scanner.Scan(
		&r.id, &r.resType, &r.resID, &r.discriminator, &r.version, &r.dataHash, &r.createdAt,
		&isLatest, &r.supersedes, &r.supersededBy, &r.parentVersion, &r.changeLog, &r.dependencies,
		&r.metadata, &r.signature, &locExternal, &r.locNamespace, &r.locKey, &r.locInline,
		&r.locSizeOriginal, &r.locSizeComp, &r.locCodec, &locEncrypted,
	); err != nil {
		return nil, err
	}
	r.isLatest = isLatest != 0
	r.locExternal = locExternal != 0
	r.locEncrypted = locEncrypted != 0
	return &r, nil
}

func (s *Store) queryOneRow(ctx context.Context, query string, args ...any) (*dbRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrPersistence, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	row, err := scanRow(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", ErrPersistence, err)
	}
	return row, nil
}

func (s *Store) getLatestRow(ctx context.Context, key model.ResourceKey) (*dbRow, error) {
	return s.queryOneRow(ctx, `SELECT `+rowColumns+` FROM versions
		WHERE resource_type=? AND resource_id=? AND discriminator=? AND is_latest=1`,
		string(key.Type), key.ID, key.Discriminator)
}

func (s *Store) insertRow(ctx context.Context, rec *model.VersionRecord) error {
	deps, err := json.Marshal(rec.Info.Dependencies)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO versions (`+rowColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, string(rec.Key.Type), rec.Key.ID, rec.Key.Discriminator, rec.Info.Version, rec.Info.DataHash,
		timeToEpoch(rec.Info.CreatedAt), boolToInt(rec.Info.IsLatest), rec.Info.Supersedes, rec.Info.SupersededBy,
		rec.Info.ParentVersion, rec.Info.ChangeLog, deps, meta, rec.Signature,
		boolToInt(rec.Location.External), string(rec.Location.Namespace), rec.Location.Key, rec.Location.Inline,
		rec.Location.SizeOriginal, rec.Location.SizeCompressed, string(rec.Location.CompressionCodec),
		boolToInt(rec.Location.Encrypted),
	)
	return err
}

func (s *Store) demote(ctx context.Context, prevID, newID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE versions SET is_latest=0, superseded_by=? WHERE id=?`, newID, prevID)
	return err
}

// promote marks predecessorID as the new chain head after its successor was
// deleted, relinking it to whatever the deleted record's own successor was.
func (s *Store) promote(ctx context.Context, predecessorID, newSupersededBy string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE versions SET is_latest=1, superseded_by=? WHERE id=?`, newSupersededBy, predecessorID)
	return err
}

// relink reconnects the supersedes/superseded_by links across a deleted
// non-head record.
func (s *Store) relink(ctx context.Context, predecessorID, successorID string) error {
	if predecessorID != "" {
		if _, err := s.db.ExecContext(ctx, `UPDATE versions SET superseded_by=? WHERE id=?`, successorID, predecessorID); err != nil {
			return err
		}
	}
	if successorID != "" {
		if _, err := s.db.ExecContext(ctx, `UPDATE versions SET supersedes=? WHERE id=?`, predecessorID, successorID); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToEpoch(t time.Time) int64 { return t.UnixNano() }
func epochToTime(n int64) time.Time { return time.Unix(0, n).UTC() }
