package visitor

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps visitors in a local SQLite file using the pure Go
// modernc.org/sqlite driver.
type SQLiteStore struct {
	*sqlStore
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{`
	CREATE TABLE IF NOT EXISTS visitors (
		id          TEXT PRIMARY KEY,
		cookies     TEXT NOT NULL DEFAULT '[]',
		lang        TEXT NOT NULL DEFAULT '',
		user_agent  TEXT NOT NULL DEFAULT '',
		browser     TEXT NOT NULL DEFAULT '',
		os          TEXT NOT NULL DEFAULT '',
		device_type TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		last_seen   INTEGER NOT NULL,
		expires_at  INTEGER NOT NULL
	)`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_expires ON visitors (expires_at)`,
	},
	upsert: `
	INSERT OR REPLACE INTO visitors (
		id, cookies, lang, user_agent, browser, os, device_type,
		created_at, last_seen, expires_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
}

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	store, err := newSQLStore(ctx, db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{store}, nil
}
