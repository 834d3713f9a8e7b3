// Package ledger keeps a durable audit log of what a cache session did:
// which calls were recorded eagerly, which trails were checkpointed, and
// with what content hash. The ledger is SQLite-backed and survives process
// restarts alongside the artifact files; the cache works without one, but
// the inspection CLI relies on it to map trails to their files.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the ledger database file inside a cache directory.
const FileName = "trailcache.db"

// Ledger is an open audit log bound to one session.
type Ledger struct {
	db        *sql.DB
	sessionID string
	seq       atomic.Int64
}

// Open creates or opens the ledger database at path and begins a new
// session identified by a UUIDv7 token. SQLite runs in WAL mode with a
// single writer connection; concurrent readers (the CLI) stay consistent.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ledger: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	l := &Ledger{
		db:        db,
		sessionID: uuid.Must(uuid.NewV7()).String(),
	}
	_, err = db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		l.sessionID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return l, nil
}

// OpenReadOnly opens an existing ledger without beginning a session.
// Used by the inspection CLI.
func OpenReadOnly(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open ledger read-only: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// SessionID returns the current session token. Empty for read-only handles.
func (l *Ledger) SessionID() string {
	return l.sessionID
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// next returns the next logical-clock sequence number for this session.
// Strictly increasing; deterministic ordering without wall-clock races.
func (l *Ledger) next() int64 {
	return l.seq.Add(1)
}

// AppendRecord logs one eagerly-recorded call.
func (l *Ledger) AppendRecord(ctx context.Context, name string, args, kwargs, result string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO records (session_id, seq, name, args, kwargs, result)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.sessionID, l.next(), name, args, kwargs, result)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// AppendCheckpoint logs one checkpoint event.
func (l *Ledger) AppendCheckpoint(ctx context.Context, trailKey, contentHash string, recomputed bool) error {
	rec := 0
	if recomputed {
		rec = 1
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO checkpoints (session_id, seq, trail_key, content_hash, recomputed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.sessionID, l.next(), trailKey, contentHash, rec, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append checkpoint: %w", err)
	}
	return nil
}
