package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

// Cursor is the resume point of one transcript file.
type Cursor struct {
	HomeID       int64
	HomePath     string
	FilePath     string
	Inode        uint64
	MTime        string
	ByteOffset   int64
	LastEventKey *string
	UpdatedAt    string
	LastModel    *string
	LastEffort   *string
}

// IngestBatch is everything one ingest run writes.
type IngestBatch struct {
	Events   []core.UsageEvent
	Messages []core.MessageEvent
	Limits   []core.UsageLimitSnapshot
	Cursors  []Cursor
}

// Cursor returns nil when the file has never been ingested for the home.
func (s *Store) Cursor(ctx context.Context, homeID int64, filePath string) (*Cursor, error) {
	var (
		c                                  Cursor
		inode                              sql.NullInt64
		mtime, lastKey, lastModel, lastEff sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT codex_home_id, codex_home, file_path, inode, mtime, byte_offset,
			last_event_key, updated_at, last_model, last_effort
		FROM ingest_cursor
		WHERE codex_home_id = ? AND file_path = ?
	`, homeID, filePath).Scan(
		&c.HomeID, &c.HomePath, &c.FilePath, &inode, &mtime, &c.ByteOffset,
		&lastKey, &c.UpdatedAt, &lastModel, &lastEff,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load cursor: %w", err)
	}
	if inode.Valid {
		c.Inode = uint64(inode.Int64)
	}
	c.MTime = mtime.String
	c.LastEventKey = stringPtr(lastKey)
	c.LastModel = stringPtr(lastModel)
	c.LastEffort = stringPtr(lastEff)
	return &c, nil
}

// LastUsageForSource returns the newest stored usage row of source, or nil.
func (s *Store) LastUsageForSource(ctx context.Context, homeID int64, source string) (*core.UsageEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+usageRowColumns+`
		FROM usage_event
		WHERE codex_home_id = ? AND source = ?
		ORDER BY ts DESC, rowid DESC
		LIMIT 1`, homeID, source)
	if err != nil {
		return nil, fmt.Errorf("store: last usage for source: %w", err)
	}
	events, err := scanUsageRows(rows)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// WriteIngestBatch writes a batch in one transaction and returns the number
// of usage events that were new. Limit snapshots are written in observation
// order and skipped when they repeat the latest snapshot of their type.
func (s *Store) WriteIngestBatch(ctx context.Context, homeID int64, batch IngestBatch) (int, error) {
	inserted := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		n, err := insertUsageEvents(ctx, tx, homeID, batch.Events)
		if err != nil {
			return err
		}
		inserted = n
		if err := insertMessageEvents(ctx, tx, homeID, batch.Messages); err != nil {
			return err
		}
		if err := insertLimitSnapshots(ctx, tx, homeID, batch.Limits); err != nil {
			return err
		}
		return s.upsertCursors(ctx, tx, homeID, batch.Cursors)
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertUsageEvents(ctx context.Context, tx *sql.Tx, homeID int64, events []core.UsageEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO usage_event (
			id, ts, model, input_tokens, cached_input_tokens, output_tokens,
			reasoning_output_tokens, total_tokens, context_used, context_window,
			cost_usd, source, session_id, request_id, raw_json, reasoning_effort, codex_home_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare usage insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, ev := range events {
		res, err := stmt.ExecContext(ctx,
			ev.ID, ev.TS, ev.Model,
			dbInt(ev.Usage.InputTokens), dbInt(ev.Usage.CachedInputTokens), dbInt(ev.Usage.OutputTokens),
			dbInt(ev.Usage.ReasoningOutputTokens), dbInt(ev.Usage.TotalTokens),
			dbInt(ev.Context.ContextUsed), dbInt(ev.Context.ContextWindow),
			nullableFloat64(ev.CostUSD), ev.Source, ev.SessionID,
			nullableString(ev.RequestID), nullableString(ev.RawJSON), nullableString(ev.ReasoningEffort),
			homeID,
		)
		if err != nil {
			return 0, fmt.Errorf("store: insert usage event: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func insertMessageEvents(ctx context.Context, tx *sql.Tx, homeID int64, messages []core.MessageEvent) error {
	for _, m := range messages {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO message_event (id, codex_home_id, ts, role, source, session_id, raw_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.ID, homeID, m.TS, m.Role, m.Source, m.SessionID, nullableString(m.RawJSON)); err != nil {
			return fmt.Errorf("store: insert message event: %w", err)
		}
	}
	return nil
}

type limitState struct {
	percent float64
	resetAt string
}

func insertLimitSnapshots(ctx context.Context, tx *sql.Tx, homeID int64, snapshots []core.UsageLimitSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	latest, err := latestLimitStates(ctx, tx, homeID)
	if err != nil {
		return err
	}

	ordered := append([]core.UsageLimitSnapshot(nil), snapshots...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ObservedAt < ordered[j].ObservedAt
	})
	for _, snap := range ordered {
		prev, ok := latest[snap.LimitType]
		if ok && prev.percent == snap.PercentLeft && prev.resetAt == snap.ResetAt {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO usage_limit_snapshot (codex_home_id, ts, limit_type, percent_left, reset_at, source, raw_line)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, homeID, snap.ObservedAt, snap.LimitType, snap.PercentLeft, snap.ResetAt, snap.Source, nullableString(snap.RawLine)); err != nil {
			return fmt.Errorf("store: insert limit snapshot: %w", err)
		}
		latest[snap.LimitType] = limitState{percent: snap.PercentLeft, resetAt: snap.ResetAt}
	}
	return nil
}

func latestLimitStates(ctx context.Context, tx *sql.Tx, homeID int64) (map[string]limitState, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT limit_type, percent_left, reset_at
		FROM usage_limit_snapshot
		WHERE codex_home_id = ?
		ORDER BY ts DESC, id DESC
	`, homeID)
	if err != nil {
		return nil, fmt.Errorf("store: load latest limits: %w", err)
	}
	defer rows.Close()

	latest := map[string]limitState{}
	for rows.Next() {
		var (
			limitType string
			st        limitState
		)
		if err := rows.Scan(&limitType, &st.percent, &st.resetAt); err != nil {
			return nil, fmt.Errorf("store: scan limit: %w", err)
		}
		if _, seen := latest[limitType]; !seen {
			latest[limitType] = st
		}
	}
	return latest, rows.Err()
}

func (s *Store) upsertCursors(ctx context.Context, tx *sql.Tx, homeID int64, cursors []Cursor) error {
	for _, c := range cursors {
		updated := c.UpdatedAt
		if updated == "" {
			updated = s.timestamp()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ingest_cursor (
				codex_home_id, codex_home, file_path, inode, mtime, byte_offset,
				last_event_key, updated_at, last_model, last_effort
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(codex_home, file_path) DO UPDATE SET
				codex_home_id = excluded.codex_home_id,
				inode = excluded.inode,
				mtime = excluded.mtime,
				byte_offset = excluded.byte_offset,
				last_event_key = COALESCE(excluded.last_event_key, ingest_cursor.last_event_key),
				updated_at = excluded.updated_at,
				last_model = excluded.last_model,
				last_effort = excluded.last_effort
		`,
			homeID, c.HomePath, c.FilePath, dbInt(c.Inode), c.MTime, c.ByteOffset,
			nullableString(c.LastEventKey), updated, nullableString(c.LastModel), nullableString(c.LastEffort),
		); err != nil {
			return fmt.Errorf("store: upsert cursor: %w", err)
		}
	}
	return nil
}
