package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

func (r *eventRepo) AppendGateEvent(ctx context.Context, data GateEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	signals, err := json.Marshal(nonNil(data.Signals))
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	interventions, err := json.Marshal(nonNil(data.Interventions))
	if err != nil {
		return fmt.Errorf("encode interventions: %w", err)
	}

	var correct sql.NullInt64
	if data.Correct != nil {
		correct = sql.NullInt64{Int64: int64(boolToInt(*data.Correct)), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO gate_events (
		sequence, created_at, session_id, kind, level, signals, interventions,
		correct, child_said, coach_line, used_fallback
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seqNum, time.Now().UnixMilli(), data.SessionID, data.Kind, data.Level,
		string(signals), string(interventions), correct, data.ChildSaid, data.CoachLine,
		boolToInt(data.UsedFallback),
	)
	if err != nil {
		return fmt.Errorf("save gate event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryGateEvents(ctx context.Context, opts QueryOpts) ([]GateEventRecord, error) {
	where, args := whereClause(opts, false)
	rows, err := r.db.QueryContext(ctx, `SELECT id, sequence, created_at, session_id, kind, level,
		signals, interventions, correct, child_said, coach_line, used_fallback
		FROM gate_events`+where+" ORDER BY sequence ASC"+limitClause(opts.Limit), args...)
	if err != nil {
		return nil, fmt.Errorf("query gate events: %w", err)
	}
	defer rows.Close()

	var out []GateEventRecord
	for rows.Next() {
		var (
			rec                    GateEventRecord
			created                int64
			signals, interventions string
			correct                sql.NullInt64
			fallback               int
		)
		if err := rows.Scan(&rec.ID, &rec.Sequence, &created, &rec.SessionID, &rec.Kind, &rec.Level,
			&signals, &interventions, &correct, &rec.ChildSaid, &rec.CoachLine, &fallback); err != nil {
			return nil, fmt.Errorf("scan gate event: %w", err)
		}
		if err := json.Unmarshal([]byte(signals), &rec.Signals); err != nil {
			return nil, fmt.Errorf("decode signals for event %d: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(interventions), &rec.Interventions); err != nil {
			return nil, fmt.Errorf("decode interventions for event %d: %w", rec.ID, err)
		}
		if correct.Valid {
			c := correct.Int64 != 0
			rec.Correct = &c
		}
		rec.Timestamp = time.UnixMilli(created).UTC()
		rec.UsedFallback = fallback != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
