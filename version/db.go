package version

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// openDB opens the version store's SQLite file and applies the PRAGMAs its
// own concurrency model needs. lock.Registry only serializes writers within
// one resource chain (spec §4.5) — writers to distinct chains run
// concurrently and still share this single *sql.DB, so WAL journaling (to
// let readers proceed during a write) and a generous busy_timeout (to ride
// out SQLITE_BUSY from that cross-chain writer contention rather than
// surface it as an error) matter more here than a single-writer store would
// need. The schema (schema.go) declares no foreign keys, so foreign_keys
// enforcement is left off.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("version: empty db path")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(openCtx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("version: apply %s: %w", pragma, err)
		}
	}

	if err := db.PingContext(openCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
