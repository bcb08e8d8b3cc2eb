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

const DefaultContextActiveMinutes = 60

// Setting returns the value stored under key and whether it exists.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_setting WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO app_setting (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
		return fmt.Errorf("store: write setting %s: %w", key, err)
	}
	return nil
}

// LegacyHomePath returns the pre-multi-home codex_home setting, if any.
func (s *Store) LegacyHomePath(ctx context.Context) (string, bool, error) {
	return s.Setting(ctx, settingLegacyHome)
}

// ContextActiveMinutes falls back to the default when unset or unparsable.
func (s *Store) ContextActiveMinutes(ctx context.Context) (int, error) {
	raw, ok, err := s.Setting(ctx, settingContextMinutes)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultContextActiveMinutes, nil
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || minutes <= 0 {
		return DefaultContextActiveMinutes, nil
	}
	return minutes, nil
}

func (s *Store) SetContextActiveMinutes(ctx context.Context, minutes int) error {
	if minutes <= 0 {
		return core.InvalidInput("context active minutes must be positive")
	}
	return s.SetSetting(ctx, settingContextMinutes, strconv.Itoa(minutes))
}
