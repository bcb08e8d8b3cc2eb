package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

type StoreStats struct {
	Homes          int64 `json:"homes"`
	UsageEvents    int64 `json:"usage_events"`
	MessageEvents  int64 `json:"message_events"`
	LimitSnapshots int64 `json:"limit_snapshots"`
	IngestCursors  int64 `json:"ingest_cursors"`
	PricingRules   int64 `json:"pricing_rules"`
	Migrations     int64 `json:"migrations"`
	SizeBytes      int64 `json:"size_bytes"`
}

func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	var stats StoreStats
	counts := []struct {
		table string
		dst   *int64
	}{
		{"codex_home", &stats.Homes},
		{"usage_event", &stats.UsageEvents},
		{"message_event", &stats.MessageEvents},
		{"usage_limit_snapshot", &stats.LimitSnapshots},
		{"ingest_cursor", &stats.IngestCursors},
		{"pricing_rule", &stats.PricingRules},
		{"schema_migrations", &stats.Migrations},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return StoreStats{}, fmt.Errorf("store: count %s: %w", c.table, err)
		}
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`).Scan(&stats.SizeBytes); err != nil {
		return StoreStats{}, fmt.Errorf("store: database size: %w", err)
	}
	return stats, nil
}

type CompactionResult struct {
	OrphanRowsRemoved         int64 `json:"orphan_rows_removed"`
	DuplicateSnapshotsRemoved int64 `json:"duplicate_snapshots_removed"`
}

// Compact removes rows whose home no longer exists and limit snapshots that
// repeat the previous snapshot of the same type, then reclaims file space.
func (s *Store) Compact(ctx context.Context) (CompactionResult, error) {
	var result CompactionResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range homeTables {
			res, err := tx.ExecContext(ctx, `DELETE FROM `+table+`
				WHERE codex_home_id IS NULL OR codex_home_id NOT IN (SELECT id FROM codex_home)`)
			if err != nil {
				return fmt.Errorf("store: compact orphans in %s: %w", table, err)
			}
			n, _ := res.RowsAffected()
			result.OrphanRowsRemoved += n
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM usage_limit_snapshot WHERE id IN (
				SELECT id FROM (
					SELECT id, percent_left, reset_at,
						LAG(percent_left) OVER w AS prev_percent,
						LAG(reset_at) OVER w AS prev_reset
					FROM usage_limit_snapshot
					WINDOW w AS (PARTITION BY codex_home_id, limit_type ORDER BY ts, id)
				)
				WHERE prev_percent = percent_left AND prev_reset = reset_at
			)
		`)
		if err != nil {
			return fmt.Errorf("store: compact duplicate snapshots: %w", err)
		}
		result.DuplicateSnapshotsRemoved, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return CompactionResult{}, err
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return result, fmt.Errorf("store: vacuum: %w", err)
	}
	log.Printf("[store] compacted orphans=%d duplicate_snapshots=%d",
		result.OrphanRowsRemoved, result.DuplicateSnapshotsRemoved)
	return result, nil
}
