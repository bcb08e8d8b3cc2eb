package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_FreshDatabase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, table := range []string{
		"codex_home", "usage_event", "message_event", "usage_limit_snapshot",
		"ingest_cursor", "pricing_rule", "app_setting", "schema_migrations",
	} {
		var name string
		err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}

	applied, err := s.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, len(migrations))

	homes, err := s.ListHomes(ctx)
	require.NoError(t, err)
	require.Len(t, homes, 1)
	assert.Equal(t, "Default", homes[0].Label)

	active, err := s.ActiveHome(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, homes[0].ID, active.ID)
}

func TestMigrate_RunTwiceIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	schema := func() []string {
		rows, err := s.db.Query(`SELECT sql FROM sqlite_master WHERE sql IS NOT NULL ORDER BY name`)
		require.NoError(t, err)
		defer rows.Close()
		var out []string
		for rows.Next() {
			var stmt string
			require.NoError(t, rows.Scan(&stmt))
			out = append(out, stmt)
		}
		return out
	}

	before := schema()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
	assert.Equal(t, before, schema())

	homes, err := s.ListHomes(ctx)
	require.NoError(t, err)
	assert.Len(t, homes, 1)
}

func TestMigrate_LegacyDatabaseBackfill(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, configureSQLiteConnection(db))

	legacy := []string{
		`CREATE TABLE usage_event (
			id TEXT PRIMARY KEY, ts TEXT NOT NULL, model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL, cached_input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL, reasoning_output_tokens INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL, context_used INTEGER NOT NULL,
			context_window INTEGER NOT NULL, cost_usd REAL, source TEXT NOT NULL,
			request_id TEXT, raw_json TEXT)`,
		`CREATE TABLE ingest_cursor (
			id INTEGER PRIMARY KEY AUTOINCREMENT, codex_home TEXT NOT NULL,
			file_path TEXT NOT NULL, inode INTEGER, mtime TEXT,
			byte_offset INTEGER NOT NULL, last_event_key TEXT,
			updated_at TEXT NOT NULL, UNIQUE(codex_home, file_path))`,
		`CREATE TABLE pricing_rule (
			id INTEGER PRIMARY KEY AUTOINCREMENT, model_pattern TEXT NOT NULL,
			input_per_1k REAL NOT NULL, output_per_1k REAL NOT NULL,
			effective_from TEXT NOT NULL, effective_to TEXT)`,
		`CREATE TABLE app_setting (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`INSERT INTO app_setting (key, value) VALUES ('codex_home', '/tmp/codex-home')`,
		`INSERT INTO usage_event VALUES ('e1', '2025-01-01T00:00:00.000Z', 'gpt-5',
			10, 0, 5, 0, 15, 15, 1000, NULL, 'source-a', NULL, NULL)`,
		`INSERT INTO ingest_cursor (codex_home, file_path, byte_offset, updated_at)
			VALUES ('/tmp/codex-home', 'source-a', 42, '2025-01-01T00:00:00.000Z')`,
		`INSERT INTO pricing_rule (model_pattern, input_per_1k, output_per_1k, effective_from)
			VALUES ('gpt-5*', 0.00125, 0.01, '2025-01-01T00:00:00.000Z')`,
	}
	for _, stmt := range legacy {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	s := NewStore(db)
	require.NoError(t, s.Migrate(ctx))

	home, err := s.HomeByPath(ctx, "/tmp/codex-home")
	require.NoError(t, err)
	require.NotNil(t, home)
	assert.Equal(t, "Default", home.Label)

	active, ok, err := s.Setting(ctx, settingActiveHome)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(home.ID, 10), active)

	var eventHome int64
	var sessionID string
	require.NoError(t, db.QueryRow(`SELECT codex_home_id, session_id FROM usage_event WHERE id = 'e1'`).Scan(&eventHome, &sessionID))
	assert.Equal(t, home.ID, eventHome)
	assert.Equal(t, "source-a", sessionID)

	var cursorHome int64
	require.NoError(t, db.QueryRow(`SELECT codex_home_id FROM ingest_cursor`).Scan(&cursorHome))
	assert.Equal(t, home.ID, cursorHome)

	rules, err := s.ListPricingRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.InDelta(t, 1.25, rules[0].InputPer1M, 1e-9)
	assert.InDelta(t, 10.0, rules[0].OutputPer1M, 1e-9)
	assert.InDelta(t, 0.0, rules[0].CachedInputPer1M, 1e-9)

	// A second run leaves the backfilled state alone.
	require.NoError(t, s.Migrate(ctx))
	homes, err := s.ListHomes(ctx)
	require.NoError(t, err)
	assert.Len(t, homes, 1)
}

func TestMigrate_RepairsSessionIDsWhenColumnExists(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "partial.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, configureSQLiteConnection(db))

	partial := []string{
		`CREATE TABLE usage_event (
			id TEXT PRIMARY KEY, ts TEXT NOT NULL, model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL, cached_input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL, reasoning_output_tokens INTEGER NOT NULL,
			total_tokens INTEGER NOT NULL, context_used INTEGER NOT NULL,
			context_window INTEGER NOT NULL, cost_usd REAL, source TEXT NOT NULL,
			request_id TEXT, raw_json TEXT, session_id TEXT)`,
		`CREATE TABLE pricing_rule (
			id INTEGER PRIMARY KEY AUTOINCREMENT, model_pattern TEXT NOT NULL,
			input_per_1k REAL NOT NULL, cached_input_per_1k REAL NOT NULL DEFAULT 0,
			output_per_1k REAL NOT NULL,
			input_per_1m REAL NOT NULL DEFAULT 0, cached_input_per_1m REAL NOT NULL DEFAULT 0,
			output_per_1m REAL NOT NULL DEFAULT 0,
			effective_from TEXT NOT NULL, effective_to TEXT)`,
		`CREATE TABLE app_setting (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`INSERT INTO app_setting (key, value) VALUES ('codex_home', '/tmp/codex-home')`,
		`INSERT INTO usage_event VALUES ('e1', '2025-01-01T00:00:00.000Z', 'gpt-5',
			10, 0, 5, 0, 15, 15, 1000, NULL, '/s/rollout-2025-01-01T00-00-00-sessA.jsonl', NULL, NULL, NULL)`,
		`INSERT INTO usage_event VALUES ('e2', '2025-01-01T00:01:00.000Z', 'gpt-5',
			20, 0, 5, 0, 25, 25, 1000, NULL, '/s/rollout-2025-01-01T00-00-00-sessB.jsonl', NULL, NULL, 'stale')`,
		`INSERT INTO usage_event VALUES ('e3', '2025-01-01T00:02:00.000Z', 'gpt-5',
			30, 0, 5, 0, 35, 35, 1000, NULL, 'source-c', NULL, NULL, 'source-c')`,
	}
	for _, stmt := range partial {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	s := NewStore(db)
	require.NoError(t, s.Migrate(ctx))

	want := map[string]string{"e1": "sessA", "e2": "sessB", "e3": "source-c"}
	for id, sessionID := range want {
		var got sql.NullString
		require.NoError(t, db.QueryRow(`SELECT session_id FROM usage_event WHERE id = ?`, id).Scan(&got))
		assert.True(t, got.Valid, id)
		assert.Equal(t, sessionID, got.String, id)
	}

	// Probe-skipped steps count as applied.
	applied, err := s.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, len(migrations))
	assert.Contains(t, applied, "0002_cached_pricing")
	assert.Contains(t, applied, "0004_pricing_per_1m")

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(migrations)), stats.Migrations)
}
