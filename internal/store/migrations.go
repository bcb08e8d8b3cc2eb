package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

const (
	settingActiveHome     = "active_codex_home_id"
	settingLegacyHome     = "codex_home"
	settingContextMinutes = "context_active_minutes"
)

// A migration probes the live schema instead of trusting a version number:
// skip reports whether the step is already in place, and apply must be safe
// to run again when skip is nil.
type migration struct {
	name  string
	skip  func(ctx context.Context, tx *sql.Tx) (bool, error)
	apply func(ctx context.Context, tx *sql.Tx, s *Store) error
}

var migrations = []migration{
	{name: "0001_init", apply: migrateInit},
	{
		name:  "0002_cached_pricing",
		skip:  columnProbe("pricing_rule", "cached_input_per_1k"),
		apply: execAll(`ALTER TABLE pricing_rule ADD COLUMN cached_input_per_1k REAL NOT NULL DEFAULT 0`),
	},
	{name: "0003_codex_home", apply: migrateCodexHome},
	{
		name: "0004_pricing_per_1m",
		skip: columnProbe("pricing_rule", "input_per_1m"),
		apply: execAll(
			`ALTER TABLE pricing_rule ADD COLUMN input_per_1m REAL NOT NULL DEFAULT 0`,
			`ALTER TABLE pricing_rule ADD COLUMN cached_input_per_1m REAL NOT NULL DEFAULT 0`,
			`ALTER TABLE pricing_rule ADD COLUMN output_per_1m REAL NOT NULL DEFAULT 0`,
			`UPDATE pricing_rule SET
				input_per_1m = input_per_1k * 1000,
				cached_input_per_1m = cached_input_per_1k * 1000,
				output_per_1m = output_per_1k * 1000`,
		),
	},
	{name: "0005_session_id", apply: migrateSessionIDs},
	{name: "0006_reasoning_effort", apply: migrateReasoningEffort},
	{
		name: "0007_usage_limits",
		apply: execAll(
			`CREATE TABLE IF NOT EXISTS usage_limit_snapshot (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				codex_home_id INTEGER NOT NULL,
				ts TEXT NOT NULL,
				limit_type TEXT NOT NULL,
				percent_left REAL NOT NULL,
				reset_at TEXT NOT NULL,
				source TEXT NOT NULL,
				raw_line TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_limit_snapshot_home_type_ts
				ON usage_limit_snapshot(codex_home_id, limit_type, ts)`,
		),
	},
	{
		name: "0008_message_events",
		apply: execAll(
			`CREATE TABLE IF NOT EXISTS message_event (
				id TEXT PRIMARY KEY,
				codex_home_id INTEGER NOT NULL,
				ts TEXT NOT NULL,
				role TEXT NOT NULL,
				source TEXT NOT NULL,
				session_id TEXT NOT NULL,
				raw_json TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_message_event_home_ts ON message_event(codex_home_id, ts)`,
		),
	},
	{
		name: "0009_cursor_state",
		apply: func(ctx context.Context, tx *sql.Tx, _ *Store) error {
			for _, col := range []string{"last_model", "last_effort"} {
				if err := ensureColumn(ctx, tx, "ingest_cursor", col, "TEXT"); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// Migrate brings the schema up to date inside one transaction. Running it
// again on a current database changes nothing.
func (s *Store) Migrate(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
			return fmt.Errorf("store: create migration ledger: %w", err)
		}

		for _, m := range migrations {
			applied := true
			if m.skip != nil {
				skip, err := m.skip(ctx, tx)
				if err != nil {
					return fmt.Errorf("store: migration %s: probe: %w", m.name, err)
				}
				applied = !skip
			}
			if applied {
				if err := m.apply(ctx, tx, s); err != nil {
					return fmt.Errorf("store: migration %s: %w", m.name, err)
				}
			}
			// A step whose probe finds it already in place is recorded too.
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
				m.name, s.timestamp())
			if err != nil {
				return fmt.Errorf("store: record migration %s: %w", m.name, err)
			}
			if n, _ := res.RowsAffected(); n > 0 && applied {
				log.Printf("[store] migration applied name=%s", m.name)
			}
		}
		return nil
	})
}

// AppliedMigrations lists the recorded migration names in order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM schema_migrations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list migrations: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scan migration: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func migrateInit(ctx context.Context, tx *sql.Tx, _ *Store) error {
	return execAll(
		`CREATE TABLE IF NOT EXISTS usage_event (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			cached_input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			reasoning_output_tokens INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL,
			context_used INTEGER NOT NULL,
			context_window INTEGER NOT NULL,
			cost_usd REAL,
			source TEXT NOT NULL,
			request_id TEXT,
			raw_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_event_ts ON usage_event(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_event_model_ts ON usage_event(model, ts)`,
		`CREATE TABLE IF NOT EXISTS ingest_cursor (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			codex_home TEXT NOT NULL,
			file_path TEXT NOT NULL,
			inode INTEGER,
			mtime TEXT,
			byte_offset INTEGER NOT NULL,
			last_event_key TEXT,
			updated_at TEXT NOT NULL,
			UNIQUE(codex_home, file_path)
		)`,
		`CREATE TABLE IF NOT EXISTS pricing_rule (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			model_pattern TEXT NOT NULL,
			input_per_1k REAL NOT NULL,
			output_per_1k REAL NOT NULL,
			effective_from TEXT NOT NULL,
			effective_to TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS app_setting (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	)(ctx, tx, nil)
}

func migrateCodexHome(ctx context.Context, tx *sql.Tx, s *Store) error {
	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS codex_home (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		last_seen_at TEXT
	)`); err != nil {
		return err
	}
	for _, table := range []string{"usage_event", "ingest_cursor"} {
		if err := ensureColumn(ctx, tx, table, "codex_home_id", "INTEGER"); err != nil {
			return err
		}
	}
	if err := execAll(
		`CREATE INDEX IF NOT EXISTS idx_usage_event_home_ts ON usage_event(codex_home_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_cursor_home_file ON ingest_cursor(codex_home_id, file_path)`,
	)(ctx, tx, s); err != nil {
		return err
	}

	var homeID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM codex_home ORDER BY id LIMIT 1`).Scan(&homeID)
	switch {
	case err == sql.ErrNoRows:
		path, err := legacyHomePath(ctx, tx)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO codex_home (label, path, created_at) VALUES (?, ?, ?)`,
			defaultHomeLabel, path, s.timestamp())
		if err != nil {
			return fmt.Errorf("create default home: %w", err)
		}
		if homeID, err = res.LastInsertId(); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("load first home: %w", err)
	}

	return execAllArgs(ctx, tx,
		stmt{`UPDATE usage_event SET codex_home_id = ? WHERE codex_home_id IS NULL`, []any{homeID}},
		stmt{`UPDATE ingest_cursor SET codex_home_id = ? WHERE codex_home_id IS NULL`, []any{homeID}},
		stmt{`INSERT OR IGNORE INTO app_setting (key, value) VALUES (?, ?)`, []any{settingActiveHome, strconv.FormatInt(homeID, 10)}},
	)
}

// legacyHomePath is the single-home path used before homes existed.
func legacyHomePath(ctx context.Context, q queryer) (string, error) {
	var path string
	err := q.QueryRowContext(ctx, `SELECT value FROM app_setting WHERE key = ?`, settingLegacyHome).Scan(&path)
	if err == nil && path != "" {
		return path, nil
	}
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("read legacy home: %w", err)
	}
	return DefaultCodexHome()
}

func migrateSessionIDs(ctx context.Context, tx *sql.Tx, _ *Store) error {
	if err := ensureColumn(ctx, tx, "usage_event", "session_id", "TEXT"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_usage_event_home_session_ts
		ON usage_event(codex_home_id, session_id, ts)`); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT source, session_id FROM usage_event`)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	updates := map[string]string{}
	for rows.Next() {
		var (
			source  string
			current sql.NullString
		)
		if err := rows.Scan(&source, &current); err != nil {
			rows.Close()
			return err
		}
		derived := core.SessionIDFromSource(source)
		if !current.Valid || current.String != derived {
			updates[source] = derived
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for source, sessionID := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE usage_event SET session_id = ? WHERE source = ?`, sessionID, source); err != nil {
			return fmt.Errorf("backfill session id: %w", err)
		}
	}
	return nil
}

func migrateReasoningEffort(ctx context.Context, tx *sql.Tx, _ *Store) error {
	if err := ensureColumn(ctx, tx, "usage_event", "reasoning_effort", "TEXT"); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_usage_event_home_model_effort
		ON usage_event(codex_home_id, model, reasoning_effort, ts)`)
	return err
}

type stmt struct {
	query string
	args  []any
}

func execAllArgs(ctx context.Context, tx *sql.Tx, stmts ...stmt) error {
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return err
		}
	}
	return nil
}

func execAll(queries ...string) func(context.Context, *sql.Tx, *Store) error {
	return func(ctx context.Context, tx *sql.Tx, _ *Store) error {
		for _, q := range queries {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return err
			}
		}
		return nil
	}
}

func columnProbe(table, column string) func(context.Context, *sql.Tx) (bool, error) {
	return func(ctx context.Context, tx *sql.Tx) (bool, error) {
		return columnExists(ctx, tx, table, column)
	}
}

func columnExists(ctx context.Context, q queryer, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func ensureColumn(ctx context.Context, tx *sql.Tx, table, column, decl string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil || exists {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	return err
}
