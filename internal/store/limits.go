package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

const limitColumns = `limit_type, percent_left, reset_at, ts, source, raw_line`

func scanLimits(rows *sql.Rows) ([]core.UsageLimitSnapshot, error) {
	defer rows.Close()

	var out []core.UsageLimitSnapshot
	for rows.Next() {
		var (
			snap core.UsageLimitSnapshot
			raw  sql.NullString
		)
		if err := rows.Scan(&snap.LimitType, &snap.PercentLeft, &snap.ResetAt, &snap.ObservedAt, &snap.Source, &raw); err != nil {
			return nil, fmt.Errorf("store: scan limit snapshot: %w", err)
		}
		snap.RawLine = stringPtr(raw)
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) firstLimit(ctx context.Context, query string, args ...any) (*core.UsageLimitSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query limit snapshot: %w", err)
	}
	snaps, err := scanLimits(rows)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// LatestLimitSnapshot returns the newest snapshot of limitType, or nil.
func (s *Store) LatestLimitSnapshot(ctx context.Context, homeID int64, limitType string) (*core.UsageLimitSnapshot, error) {
	return s.firstLimit(ctx, `SELECT `+limitColumns+` FROM usage_limit_snapshot
		WHERE codex_home_id = ? AND limit_type = ?
		ORDER BY ts DESC, id DESC
		LIMIT 1`, homeID, limitType)
}

// CurrentLimitSnapshot returns the newest snapshot of limitType whose reset
// is not before now, or nil.
func (s *Store) CurrentLimitSnapshot(ctx context.Context, homeID int64, limitType, now string) (*core.UsageLimitSnapshot, error) {
	return s.firstLimit(ctx, `SELECT `+limitColumns+` FROM usage_limit_snapshot
		WHERE codex_home_id = ? AND limit_type = ? AND reset_at >= ?
		ORDER BY ts DESC, id DESC
		LIMIT 1`, homeID, limitType, now)
}

// ListLimitSnapshots returns snapshots newest first; limit <= 0 means all.
func (s *Store) ListLimitSnapshots(ctx context.Context, homeID int64, limitType string, limit int) ([]core.UsageLimitSnapshot, error) {
	query := `SELECT ` + limitColumns + ` FROM usage_limit_snapshot
		WHERE codex_home_id = ? AND limit_type = ?
		ORDER BY ts DESC, id DESC`
	args := []any{homeID, limitType}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list limit snapshots: %w", err)
	}
	return scanLimits(rows)
}

// LimitResets returns the distinct reset timestamps recorded for limitType.
func (s *Store) LimitResets(ctx context.Context, homeID int64, limitType string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT reset_at FROM usage_limit_snapshot
		WHERE codex_home_id = ? AND limit_type = ?
		ORDER BY reset_at`, homeID, limitType)
	if err != nil {
		return nil, fmt.Errorf("store: list limit resets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var reset string
		if err := rows.Scan(&reset); err != nil {
			return nil, fmt.Errorf("store: scan limit reset: %w", err)
		}
		out = append(out, reset)
	}
	return out, rows.Err()
}
