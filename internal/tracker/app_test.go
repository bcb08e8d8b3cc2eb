package tracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janekbaraniewski/codextracker/internal/config"
	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/detect"
	"github.com/janekbaraniewski/codextracker/internal/pricing"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	codexHome := filepath.Join(dir, "codex")
	t.Setenv("CODEX_HOME", codexHome)
	return config.Config{
		DataDir:     filepath.Join(dir, "data"),
		DBPath:      filepath.Join(dir, "data", "tracker.db"),
		PricingPath: filepath.Join(dir, "data", pricing.FileName),
		CodexHome:   codexHome,
		Ingest:      config.IngestConfig{Workers: 2},
		Watch:       config.WatchConfig{Debounce: 50 * time.Millisecond},
	}
}

func openApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	app, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestOpen_SeedsBundledPricing(t *testing.T) {
	cfg := testConfig(t)
	app := openApp(t, cfg)

	defaults, err := pricing.Defaults()
	require.NoError(t, err)
	rules, err := app.ListPricing(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, len(defaults))

	mirror, found, err := pricing.LoadFile(cfg.PricingPath)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, mirror, len(defaults))
}

func TestOpen_SeedsFromMirror(t *testing.T) {
	cfg := testConfig(t)
	custom := []core.PricingRuleInput{{
		ModelPattern:  "custom-*",
		InputPer1M:    3,
		EffectiveFrom: "2025-01-01T00:00:00.000Z",
	}}
	require.NoError(t, pricing.SaveFile(cfg.PricingPath, custom))

	app := openApp(t, cfg)
	rules, err := app.ListPricing(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "custom-*", rules[0].ModelPattern)
}

func TestOpen_ExistingDatabaseKeepsRules(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	app, err := Open(ctx, cfg)
	require.NoError(t, err)
	_, err = app.ReplacePricing(ctx, []core.PricingRuleInput{{
		ModelPattern:  "only",
		EffectiveFrom: "2025-01-01T00:00:00Z",
	}})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	reopened := openApp(t, cfg)
	rules, err := reopened.ListPricing(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "only", rules[0].ModelPattern)

	mirror, _, err := pricing.LoadFile(cfg.PricingPath)
	require.NoError(t, err)
	require.Len(t, mirror, 1)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", mirror[0].EffectiveFrom)
}

func TestReplacePricing_Invalid(t *testing.T) {
	app := openApp(t, testConfig(t))
	_, err := app.ReplacePricing(context.Background(), []core.PricingRuleInput{{
		ModelPattern:  " ",
		EffectiveFrom: "2025-01-01T00:00:00Z",
	}})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestHomes(t *testing.T) {
	cfg := testConfig(t)
	app := openApp(t, cfg)
	ctx := context.Background()

	first, err := app.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.CodexHome, first.Path)

	second, err := app.CreateHome(ctx, "/srv/second", "Work")
	require.NoError(t, err)
	assert.Equal(t, "Work", second.Label)
	assert.NotNil(t, second.LastSeenAt)

	active, err := app.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	again, err := app.CreateHome(ctx, "/srv/second", "Ignored")
	require.NoError(t, err)
	assert.Equal(t, second.ID, again.ID)

	homes, err := app.ListHomes(ctx)
	require.NoError(t, err)
	assert.Len(t, homes, 2)

	// Deleting the active home hands activity to the survivor.
	require.NoError(t, app.DeleteHome(ctx, second.ID))
	active, err = app.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	err = app.DeleteHome(ctx, first.ID)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
	err = app.DeleteHome(ctx, 9999)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	_, err = app.ActivateHome(ctx, 9999)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	err = app.ClearHome(ctx, 9999)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func writeTranscript(t *testing.T, home string, totals ...uint64) {
	t.Helper()
	path := filepath.Join(home, "sessions", "2026", "03", "15", "rollout-2026-03-15T10-00-00-abc.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := `{"type":"turn_context","payload":{"model":"gpt-5","effort":"medium"}}` + "\n"
	for i, total := range totals {
		content += fmt.Sprintf(`{"timestamp":"2026-03-15T10:%02d:00Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":%d,"output_tokens":0,"total_tokens":%d}}}}`, i, total, total) + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestAndRecompute(t *testing.T) {
	cfg := testConfig(t)
	app := openApp(t, cfg)
	ctx := context.Background()
	writeTranscript(t, cfg.CodexHome, 1_000_000, 2_000_000)

	stats, err := app.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EventsInserted)

	home, err := app.ActiveHome(ctx)
	require.NoError(t, err)
	counts, err := app.HomeCounts(ctx, home.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.UsageEvents)
	assert.Equal(t, int64(1), counts.IngestCursors)

	r := core.TimeRange{Start: "2026-03-15T00:00:00.000Z", End: "2026-03-16T00:00:00.000Z"}
	events, err := app.Analytics().Events(ctx, home.ID, r, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		require.NotNil(t, ev.CostUSD)
		assert.InDelta(t, 1.25, *ev.CostUSD, 1e-9)
	}

	_, err = app.ReplacePricing(ctx, []core.PricingRuleInput{{
		ModelPattern:  "gpt-5",
		InputPer1M:    2,
		EffectiveFrom: "2025-01-01T00:00:00Z",
	}})
	require.NoError(t, err)
	n, err := app.RecomputeCosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err = app.Analytics().Events(ctx, home.ID, r, nil, 0, 0)
	require.NoError(t, err)
	for _, ev := range events {
		require.NotNil(t, ev.CostUSD)
		assert.InDelta(t, 2.0, *ev.CostUSD, 1e-9)
	}

	require.NoError(t, app.ClearHome(ctx, home.ID))
	counts, err = app.HomeCounts(ctx, home.ID)
	require.NoError(t, err)
	assert.Equal(t, core.HomeCounts{}, counts)
}

func TestWatch_RunsOnStart(t *testing.T) {
	cfg := testConfig(t)
	app := openApp(t, cfg)
	writeTranscript(t, cfg.CodexHome, 500)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runs := make(chan core.IngestStats, 4)
	done := make(chan error, 1)
	go func() {
		done <- app.Watch(ctx, func(s core.IngestStats) { runs <- s })
	}()

	select {
	case s := <-runs:
		assert.Equal(t, 1, s.EventsInserted)
	case <-ctx.Done():
		t.Fatal("watch did not run an initial ingest")
	}
	cancel()
	assert.NoError(t, <-done)
}

func TestDetectHomes(t *testing.T) {
	cfg := testConfig(t)
	app := openApp(t, cfg)
	ctx := context.Background()
	extra := t.TempDir()
	app.detect = func() []detect.Candidate {
		return []detect.Candidate{
			{Path: cfg.CodexHome, Origin: detect.OriginEnv},
			{Path: extra, Origin: detect.OriginDefault},
		}
	}
	active, err := app.ActiveHome(ctx)
	require.NoError(t, err)

	found, err := app.DetectHomes(ctx, false)
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.NotNil(t, found[0].HomeID)
	assert.Equal(t, active.ID, *found[0].HomeID)
	assert.Nil(t, found[1].HomeID)

	found, err = app.DetectHomes(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, found[1].HomeID)

	after, err := app.ActiveHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, active.ID, after.ID)
	homes, err := app.ListHomes(ctx)
	require.NoError(t, err)
	assert.Len(t, homes, 2)
}
