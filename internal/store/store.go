// Package store is the optional durable mirror of the Gateway's in-memory
// conversation state (spec.md §2 item 6: "in-memory authoritative state with
// optional durable mirror"). The Gateway's registry is the source of truth
// for routing decisions; this package only gives an operator something to
// restart from after a crash and something to query for audit/support.
package store

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

// DB wraps *sql.DB for the conversation mirror. No connection pooling
// tuning beyond the driver default: write volume is one row per dispatch,
// not per request.
type DB struct {
	*sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS conversation_snapshots (
	session_key    TEXT PRIMARY KEY,
	channel        TEXT NOT NULL,
	context_json   TEXT NOT NULL,
	qualification_json TEXT NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS queued_conversations (
	conversation_id TEXT PRIMARY KEY,
	department      TEXT NOT NULL,
	priority        INTEGER NOT NULL,
	snapshot_json    TEXT NOT NULL,
	queued_at        DATETIME NOT NULL,
	assigned_agent_id TEXT
);
`

// Open opens (creating if missing) the sqlite file at path and applies the
// schema. A blank path disables the mirror entirely — callers should treat
// that as "store is nil", not call Open.
func Open(ctx context.Context, path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &DB{DB: sqlDB}, nil
}
