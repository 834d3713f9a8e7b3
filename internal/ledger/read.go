package ledger

import (
	"context"
	"fmt"
)

// Session is one row of the sessions table.
type Session struct {
	ID        string
	StartedAt string
}

// Record is one eagerly-recorded call.
type Record struct {
	SessionID string
	Seq       int64
	Name      string
	Args      string
	Kwargs    string
	Result    string
}

// Checkpoint is one checkpoint event.
type Checkpoint struct {
	SessionID   string
	Seq         int64
	TrailKey    string
	ContentHash string
	Recomputed  bool
	CreatedAt   string
}

// Sessions returns all sessions, oldest first. UUIDv7 ids sort by creation
// time, so ordering by id is chronological.
func (l *Ledger) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, started_at FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.StartedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Records returns a session's recorded calls in sequence order.
func (l *Ledger) Records(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, seq, name, args, kwargs, result
		FROM records WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.SessionID, &r.Seq, &r.Name, &r.Args, &r.Kwargs, &r.Result); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Checkpoints returns a session's checkpoint events in sequence order.
func (l *Ledger) Checkpoints(ctx context.Context, sessionID string) ([]Checkpoint, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, seq, trail_key, content_hash, recomputed, created_at
		FROM checkpoints WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	var cps []Checkpoint
	for rows.Next() {
		var (
			cp  Checkpoint
			rec int
		)
		if err := rows.Scan(&cp.SessionID, &cp.Seq, &cp.TrailKey, &cp.ContentHash, &rec, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.Recomputed = rec != 0
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

// TrailKeys returns the distinct trail keys ever checkpointed, in key order.
// The inspection CLI uses these to pair blobs with manifests, since the two
// file digests of one trail are not derivable from each other.
func (l *Ledger) TrailKeys(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT DISTINCT trail_key FROM checkpoints ORDER BY trail_key`)
	if err != nil {
		return nil, fmt.Errorf("query trail keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan trail key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
