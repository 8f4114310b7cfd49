package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// sequenceCounter hands out one monotonic sequence shared by every event
// table, so LLM calls and gate results interleave in the order they
// happened. The mutex serializes within the process; RETURNING makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// eventRepo implements EventRepo with plain SQL.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

// whereClause renders the shared QueryOpts filters. purpose is only
// honoured by tables that have the column.
func whereClause(opts QueryOpts, withPurpose bool) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if opts.After > 0 {
		add("sequence > ?", opts.After)
	}
	if opts.Before > 0 {
		add("sequence < ?", opts.Before)
	}
	if !opts.From.IsZero() {
		add("created_at >= ?", opts.From.UnixMilli())
	}
	if !opts.To.IsZero() {
		add("created_at <= ?", opts.To.UnixMilli())
	}
	if opts.SessionID != "" {
		add("session_id = ?", opts.SessionID)
	}
	if withPurpose && opts.Purpose != "" {
		add("purpose = ?", opts.Purpose)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
