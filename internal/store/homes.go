package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

const (
	defaultHomeLabel = "Default"
	newHomeLabel     = "Home"
)

// homeTables hold rows scoped to a home.
var homeTables = []string{"usage_event", "message_event", "usage_limit_snapshot", "ingest_cursor"}

const homeColumns = `id, label, path, created_at, last_seen_at`

func scanHome(row interface{ Scan(...any) error }) (core.Home, error) {
	var (
		h        core.Home
		lastSeen sql.NullString
	)
	if err := row.Scan(&h.ID, &h.Label, &h.Path, &h.CreatedAt, &lastSeen); err != nil {
		return core.Home{}, err
	}
	h.LastSeenAt = stringPtr(lastSeen)
	return h, nil
}

func (s *Store) ListHomes(ctx context.Context) ([]core.Home, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+homeColumns+` FROM codex_home ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list homes: %w", err)
	}
	defer rows.Close()

	var homes []core.Home
	for rows.Next() {
		h, err := scanHome(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan home: %w", err)
		}
		homes = append(homes, h)
	}
	return homes, rows.Err()
}

// HomeByID returns nil when no home has id.
func (s *Store) HomeByID(ctx context.Context, id int64) (*core.Home, error) {
	return s.homeWhere(ctx, `id = ?`, id)
}

func (s *Store) HomeByPath(ctx context.Context, path string) (*core.Home, error) {
	return s.homeWhere(ctx, `path = ?`, path)
}

func (s *Store) homeWhere(ctx context.Context, cond string, arg any) (*core.Home, error) {
	h, err := scanHome(s.db.QueryRowContext(ctx, `SELECT `+homeColumns+` FROM codex_home WHERE `+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load home: %w", err)
	}
	return &h, nil
}

// AddHome registers a new home. An empty label becomes "Home".
func (s *Store) AddHome(ctx context.Context, path, label string) (core.Home, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return core.Home{}, core.InvalidInput("home path is required")
	}
	existing, err := s.HomeByPath(ctx, path)
	if err != nil {
		return core.Home{}, err
	}
	if existing != nil {
		return core.Home{}, core.InvalidInput("home already exists: %s", path)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = newHomeLabel
	}
	return s.insertHome(ctx, path, label)
}

func (s *Store) insertHome(ctx context.Context, path, label string) (core.Home, error) {
	created := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO codex_home (label, path, created_at) VALUES (?, ?, ?)`, label, path, created)
	if err != nil {
		return core.Home{}, fmt.Errorf("store: insert home: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Home{}, fmt.Errorf("store: insert home: %w", err)
	}
	return core.Home{ID: id, Label: label, Path: path, CreatedAt: created}, nil
}

// GetOrCreateHome returns the home at path, creating it with label if absent.
func (s *Store) GetOrCreateHome(ctx context.Context, path, label string) (core.Home, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return core.Home{}, core.InvalidInput("home path is required")
	}
	existing, err := s.HomeByPath(ctx, path)
	if err != nil {
		return core.Home{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	if strings.TrimSpace(label) == "" {
		label = defaultHomeLabel
	}
	return s.insertHome(ctx, path, label)
}

func (s *Store) SetActiveHome(ctx context.Context, id int64) error {
	h, err := s.HomeByID(ctx, id)
	if err != nil {
		return err
	}
	if h == nil {
		return core.NotFound("home not found")
	}
	return s.SetSetting(ctx, settingActiveHome, strconv.FormatInt(id, 10))
}

// ActiveHome returns nil when no valid active home is recorded.
func (s *Store) ActiveHome(ctx context.Context) (*core.Home, error) {
	raw, ok, err := s.Setting(ctx, settingActiveHome)
	if err != nil || !ok {
		return nil, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, nil
	}
	return s.HomeByID(ctx, id)
}

// EnsureActiveHome returns the active home, creating and activating one from
// the legacy path setting or defaultPath when none is recorded.
func (s *Store) EnsureActiveHome(ctx context.Context, defaultPath string) (core.Home, error) {
	active, err := s.ActiveHome(ctx)
	if err != nil {
		return core.Home{}, err
	}
	if active != nil {
		return *active, nil
	}

	path, ok, err := s.Setting(ctx, settingLegacyHome)
	if err != nil {
		return core.Home{}, err
	}
	if !ok || strings.TrimSpace(path) == "" {
		path = defaultPath
	}
	h, err := s.GetOrCreateHome(ctx, path, defaultHomeLabel)
	if err != nil {
		return core.Home{}, err
	}
	if err := s.SetActiveHome(ctx, h.ID); err != nil {
		return core.Home{}, err
	}
	return h, nil
}

func (s *Store) TouchHome(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE codex_home SET last_seen_at = ? WHERE id = ?`, s.timestamp(), id); err != nil {
		return fmt.Errorf("store: touch home: %w", err)
	}
	return nil
}

// DeleteHome removes a home and every row scoped to it.
func (s *Store) DeleteHome(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := clearHomeRows(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM codex_home WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: delete home: %w", err)
		}
		return nil
	})
}

// ClearHomeData removes every row scoped to a home but keeps the home.
func (s *Store) ClearHomeData(ctx context.Context, id int64) error {
	h, err := s.HomeByID(ctx, id)
	if err != nil {
		return err
	}
	if h == nil {
		return core.NotFound("home not found")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return clearHomeRows(ctx, tx, id)
	})
}

func clearHomeRows(ctx context.Context, tx *sql.Tx, id int64) error {
	for _, table := range homeTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE codex_home_id = ?`, id); err != nil {
			return fmt.Errorf("store: clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) HomeCounts(ctx context.Context, id int64) (core.HomeCounts, error) {
	var c core.HomeCounts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM usage_event WHERE codex_home_id = ?),
		(SELECT COUNT(*) FROM message_event WHERE codex_home_id = ?),
		(SELECT COUNT(*) FROM ingest_cursor WHERE codex_home_id = ?)`,
		id, id, id).Scan(&c.UsageEvents, &c.MessageEvents, &c.IngestCursors)
	if err != nil {
		return core.HomeCounts{}, fmt.Errorf("store: home counts: %w", err)
	}
	return c, nil
}
