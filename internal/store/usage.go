package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

const usageRowColumns = `id, ts, model, input_tokens, cached_input_tokens, output_tokens,
	reasoning_output_tokens, total_tokens, context_used, context_window, cost_usd,
	source, session_id, request_id, reasoning_effort`

// scanUsageRows drains and closes rows.
func scanUsageRows(rows *sql.Rows) ([]core.UsageEvent, error) {
	defer rows.Close()

	var out []core.UsageEvent
	for rows.Next() {
		var (
			ev                           core.UsageEvent
			cost                         sql.NullFloat64
			sessionID, requestID, effort sql.NullString
		)
		if err := rows.Scan(
			&ev.ID, &ev.TS, &ev.Model,
			&ev.Usage.InputTokens, &ev.Usage.CachedInputTokens, &ev.Usage.OutputTokens,
			&ev.Usage.ReasoningOutputTokens, &ev.Usage.TotalTokens,
			&ev.Context.ContextUsed, &ev.Context.ContextWindow,
			&cost, &ev.Source, &sessionID, &requestID, &effort,
		); err != nil {
			return nil, fmt.Errorf("store: scan usage row: %w", err)
		}
		ev.CostUSD = floatPtr(cost)
		ev.SessionID = sessionID.String
		ev.RequestID = stringPtr(requestID)
		ev.ReasoningEffort = stringPtr(effort)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate usage rows: %w", err)
	}
	return out, nil
}

// normalizeEfforts maps placeholder efforts on read rows to the default.
func normalizeEfforts(events []core.UsageEvent) []core.UsageEvent {
	for i := range events {
		events[i].ReasoningEffort = core.NormalizeEffort(events[i].ReasoningEffort)
	}
	return events
}

// UsageRows returns the rows of a home inside r, optionally for one model,
// ordered by source then timestamp so deltas can be rebuilt per source.
func (s *Store) UsageRows(ctx context.Context, homeID int64, r core.TimeRange, model *string) ([]core.UsageEvent, error) {
	query := `SELECT ` + usageRowColumns + ` FROM usage_event
		WHERE codex_home_id = ? AND ts >= ? AND ts < ?`
	args := []any{homeID, r.Start, r.End}
	if model != nil {
		query += ` AND model = ?`
		args = append(args, *model)
	}
	query += ` ORDER BY source ASC, ts ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query usage rows: %w", err)
	}
	events, err := scanUsageRows(rows)
	if err != nil {
		return nil, err
	}
	return normalizeEfforts(events), nil
}

// AllUsageRows returns every row of a home ordered by source then timestamp.
func (s *Store) AllUsageRows(ctx context.Context, homeID int64) ([]core.UsageEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+usageRowColumns+` FROM usage_event
		WHERE codex_home_id = ?
		ORDER BY source ASC, ts ASC, rowid ASC`, homeID)
	if err != nil {
		return nil, fmt.Errorf("store: query usage rows: %w", err)
	}
	events, err := scanUsageRows(rows)
	if err != nil {
		return nil, err
	}
	return normalizeEfforts(events), nil
}

// ListUsageEvents pages through raw rows newest first.
func (s *Store) ListUsageEvents(ctx context.Context, homeID int64, r core.TimeRange, model *string, limit, offset int) ([]core.UsageEvent, error) {
	query := `SELECT ` + usageRowColumns + ` FROM usage_event
		WHERE codex_home_id = ? AND ts >= ? AND ts < ?`
	args := []any{homeID, r.Start, r.End}
	if model != nil {
		query += ` AND model = ?`
		args = append(args, *model)
	}
	query += ` ORDER BY ts DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list usage events: %w", err)
	}
	events, err := scanUsageRows(rows)
	if err != nil {
		return nil, err
	}
	return normalizeEfforts(events), nil
}

func (s *Store) MessageCount(ctx context.Context, homeID int64, r core.TimeRange) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_event
		WHERE codex_home_id = ? AND ts >= ? AND ts < ?`, homeID, r.Start, r.End).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count messages: %w", err)
	}
	return n, nil
}

// LatestUsage returns the newest row of a home, or nil.
func (s *Store) LatestUsage(ctx context.Context, homeID int64) (*core.UsageEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+usageRowColumns+` FROM usage_event
		WHERE codex_home_id = ?
		ORDER BY ts DESC, rowid DESC
		LIMIT 1`, homeID)
	if err != nil {
		return nil, fmt.Errorf("store: latest usage: %w", err)
	}
	events, err := scanUsageRows(rows)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// ActiveSessions returns, per session seen at or after since, its newest row.
func (s *Store) ActiveSessions(ctx context.Context, homeID int64, since string) ([]core.ActiveSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ue.session_id, ue.ts, latest.start_ts, ue.model, ue.context_used, ue.context_window
		FROM usage_event ue
		INNER JOIN (
			SELECT session_id, MAX(ts) AS last_ts, MIN(ts) AS start_ts
			FROM usage_event
			WHERE codex_home_id = ? AND ts >= ?
			GROUP BY session_id
		) latest ON ue.session_id = latest.session_id AND ue.ts = latest.last_ts
		WHERE ue.codex_home_id = ?
		ORDER BY ue.ts DESC, ue.rowid DESC
	`, homeID, since, homeID)
	if err != nil {
		return nil, fmt.Errorf("store: active sessions: %w", err)
	}
	defer rows.Close()

	var (
		out  []core.ActiveSession
		seen = map[string]bool{}
	)
	for rows.Next() {
		var a core.ActiveSession
		if err := rows.Scan(&a.SessionID, &a.LastSeen, &a.SessionStart, &a.Model, &a.ContextUsed, &a.ContextWindow); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		// Two rows may share the latest timestamp; keep the first.
		if seen[a.SessionID] {
			continue
		}
		seen[a.SessionID] = true
		out = append(out, a)
	}
	return out, rows.Err()
}

// ContextPressure averages context use over rows with a known window.
func (s *Store) ContextPressure(ctx context.Context, homeID int64, r core.TimeRange) (core.ContextPressureStats, error) {
	var (
		stats             core.ContextPressureStats
		used, window, pct sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(context_used), AVG(context_window),
			AVG(context_used * 1.0 / context_window) * 100
		FROM usage_event
		WHERE codex_home_id = ? AND ts >= ? AND ts < ? AND context_window > 0
	`, homeID, r.Start, r.End).Scan(&stats.SampleCount, &used, &window, &pct)
	if err != nil {
		return core.ContextPressureStats{}, fmt.Errorf("store: context pressure: %w", err)
	}
	stats.AvgContextUsed = floatPtr(used)
	stats.AvgContextWindow = floatPtr(window)
	stats.AvgPressurePct = floatPtr(pct)
	return stats, nil
}
