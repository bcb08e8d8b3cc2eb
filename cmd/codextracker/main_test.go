package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

type cli struct {
	t          *testing.T
	configPath string
	codexHome  string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	codexHome := filepath.Join(dir, "codex")
	t.Setenv("CODEX_HOME", codexHome)

	configPath := filepath.Join(dir, "config.yaml")
	content := "data_dir: " + filepath.Join(dir, "data") + "\ncodex_home: " + codexHome + "\ningest:\n  workers: 2\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return &cli{t: t, configPath: configPath, codexHome: codexHome}
}

func (c *cli) exec(args ...string) (string, error) {
	c.t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", c.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustJSON(target any, args ...string) {
	c.t.Helper()
	out, err := c.exec(append([]string{"--json"}, args...)...)
	require.NoError(c.t, err, out)
	require.NoError(c.t, json.Unmarshal([]byte(out), target), out)
}

func (c *cli) writeTranscript() {
	c.t.Helper()
	path := filepath.Join(c.codexHome, "sessions", "2026", "03", "15", "rollout-2026-03-15T10-00-00-cli.jsonl")
	require.NoError(c.t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := strings.Join([]string{
		`{"type":"turn_context","payload":{"model":"gpt-5","effort":"high"}}`,
		`{"timestamp":"2026-03-15T10:00:00Z","type":"event_msg","payload":{"type":"user_message","message":"hi"}}`,
		`{"timestamp":"2026-03-15T10:00:05Z","type":"event_msg","payload":{"type":"token_count","info":{"total_token_usage":{"input_tokens":1000000,"output_tokens":0,"total_tokens":1000000},"model_context_window":200000}}}`,
	}, "\n") + "\n"
	require.NoError(c.t, os.WriteFile(path, []byte(content), 0o644))
}

var allTime = []string{"--start", "2026-03-01T00:00:00Z", "--end", "2026-04-01T00:00:00Z"}

func TestCLI_IngestAndReport(t *testing.T) {
	c := newCLI(t)
	c.writeTranscript()

	var stats core.IngestStats
	c.mustJSON(&stats, "ingest")
	assert.Equal(t, 1, stats.EventsInserted)
	assert.Equal(t, 1, stats.FilesScanned)

	var summary struct {
		core.UsageSummary
		MessageCount uint64 `json:"message_count"`
	}
	c.mustJSON(&summary, append([]string{"summary"}, allTime...)...)
	assert.Equal(t, uint64(1_000_000), summary.TotalTokens)
	require.NotNil(t, summary.TotalCostUSD)
	assert.InDelta(t, 1.25, *summary.TotalCostUSD, 1e-9)
	assert.Equal(t, uint64(1), summary.MessageCount)

	var efforts []core.ModelEffortCostBreakdown
	c.mustJSON(&efforts, append([]string{"breakdown", "--by", "effort", "--view", "costs"}, allTime...)...)
	require.Len(t, efforts, 1)
	require.NotNil(t, efforts[0].ReasoningEffort)
	assert.Equal(t, "high", *efforts[0].ReasoningEffort)

	var points []core.TimeSeriesPoint
	c.mustJSON(&points, append([]string{"timeseries", "--bucket", "hour"}, allTime...)...)
	require.Len(t, points, 1)
	assert.Equal(t, float64(1_000_000), points[0].Value)

	table, err := c.exec(append([]string{"summary"}, allTime...)...)
	require.NoError(t, err)
	assert.Contains(t, table, "Total")
	assert.Contains(t, table, "1.0M")
}

func TestCLI_InvalidInput(t *testing.T) {
	c := newCLI(t)

	_, err := c.exec("timeseries", "--bucket", "week")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	_, err = c.exec("summary", "--range", "yesterday")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	_, err = c.exec("homes", "use", "9999")
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))

	_, err = c.exec("breakdown", "--by", "provider")
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestCLI_HomesAndSettings(t *testing.T) {
	c := newCLI(t)

	var homes []homeListing
	c.mustJSON(&homes, "homes", "list")
	require.Len(t, homes, 1)
	assert.True(t, homes[0].Active)
	assert.Equal(t, c.codexHome, homes[0].Path)

	var added core.Home
	c.mustJSON(&added, "homes", "add", "/srv/other", "--label", "Other")
	assert.Equal(t, "Other", added.Label)

	var snap struct {
		CodexHome            string `json:"codex_home"`
		ContextActiveMinutes int    `json:"context_active_minutes"`
	}
	c.mustJSON(&snap, "settings", "set", "--context-minutes", "30")
	assert.Equal(t, "/srv/other", snap.CodexHome)
	assert.Equal(t, 30, snap.ContextActiveMinutes)

	_, err := c.exec("homes", "delete", "1")
	require.NoError(t, err)
	_, err = c.exec("homes", "delete", "2")
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestCLI_PricingReplace(t *testing.T) {
	c := newCLI(t)
	rulesPath := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(rulesPath, []byte(`[{"model_pattern":"gpt-*","input_per_1m":2,"effective_from":"2025-01-01T00:00:00Z"}]`), 0o644))

	var rules []core.PricingRule
	c.mustJSON(&rules, "pricing", "replace", rulesPath)
	require.Len(t, rules, 1)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", rules[0].EffectiveFrom)

	require.NoError(t, os.WriteFile(rulesPath, []byte(`{"not":"a list"}`), 0o644))
	_, err := c.exec("pricing", "replace", rulesPath)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestCLI_DBStats(t *testing.T) {
	c := newCLI(t)
	c.writeTranscript()
	_, err := c.exec("ingest")
	require.NoError(t, err)

	var stats struct {
		Homes       int64 `json:"homes"`
		UsageEvents int64 `json:"usage_events"`
	}
	c.mustJSON(&stats, "db", "stats")
	assert.Equal(t, int64(1), stats.Homes)
	assert.Equal(t, int64(1), stats.UsageEvents)

	out, err := c.exec("db", "compact")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 orphaned rows")
}
