package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("CODEX_HOME", filepath.Join(t.TempDir(), "codex"))

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func activeHomeID(t *testing.T, s *Store) int64 {
	t.Helper()
	h, err := s.EnsureActiveHome(context.Background(), "/unused")
	require.NoError(t, err)
	return h.ID
}

func usageEvent(id, ts, source string, total uint64) core.UsageEvent {
	return core.UsageEvent{
		ID:    id,
		TS:    ts,
		Model: "gpt-5",
		Usage: core.UsageTotals{
			InputTokens:  total,
			OutputTokens: 0,
			TotalTokens:  total,
		},
		Context:   core.ContextStatus{ContextUsed: total, ContextWindow: 100000},
		Source:    source,
		SessionID: core.SessionIDFromSource(source),
	}
}
