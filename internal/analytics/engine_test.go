package analytics

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/store"
)

var (
	fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	march    = core.TimeRange{Start: "2026-03-01T00:00:00.000Z", End: "2026-04-01T00:00:00.000Z"}
)

type harness struct {
	t      *testing.T
	store  *store.Store
	engine *Engine
	homeID int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("CODEX_HOME", filepath.Join(t.TempDir(), "codex"))
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	home, err := st.EnsureActiveHome(context.Background(), "/unused")
	require.NoError(t, err)

	e := New(st)
	e.now = func() time.Time { return fixedNow }
	e.loc = time.UTC
	return &harness{t: t, store: st, engine: e, homeID: home.ID}
}

func (h *harness) rules(inputs ...core.PricingRuleInput) {
	h.t.Helper()
	_, err := h.store.ReplacePricingRules(context.Background(), inputs)
	require.NoError(h.t, err)
}

func (h *harness) write(batch store.IngestBatch) {
	h.t.Helper()
	_, err := h.store.WriteIngestBatch(context.Background(), h.homeID, batch)
	require.NoError(h.t, err)
}

func (h *harness) events(evs ...core.UsageEvent) {
	h.write(store.IngestBatch{Events: evs})
}

func event(id, ts, source, model string, total uint64) core.UsageEvent {
	return core.UsageEvent{
		ID:        id,
		TS:        ts,
		Model:     model,
		Usage:     core.UsageTotals{InputTokens: total, TotalTokens: total},
		Source:    source,
		SessionID: source,
	}
}

// perToken prices one dollar per input token million and ten per output.
func perToken(pattern string) core.PricingRuleInput {
	return core.PricingRuleInput{
		ModelPattern:  pattern,
		InputPer1M:    1,
		OutputPer1M:   10,
		EffectiveFrom: "2025-01-01T00:00:00Z",
	}
}

func TestSummary_RebuildsDeltasPerSource(t *testing.T) {
	h := newHarness(t)
	h.rules(perToken("gpt-5*"))
	h.events(
		event("a1", "2026-03-10T10:00:00.000Z", "/a", "gpt-5", 1000),
		event("a2", "2026-03-10T10:01:00.000Z", "/a", "gpt-5", 1500),
		event("a3", "2026-03-10T10:02:00.000Z", "/a", "gpt-5", 400),
		event("a4", "2026-03-10T10:03:00.000Z", "/a", "gpt-5", 900),
		event("b1", "2026-03-10T10:00:30.000Z", "/b", "gpt-5", 100),
	)

	s, err := h.engine.Summary(context.Background(), h.homeID, march)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), s.TotalTokens)
	assert.Equal(t, uint64(2500), s.InputTokens)
	require.NotNil(t, s.TotalCostUSD)
	assert.InDelta(t, 0.0025, *s.TotalCostUSD, 1e-12)
	require.NotNil(t, s.InputCostUSD)
	assert.InDelta(t, 0.0025, *s.InputCostUSD, 1e-12)
}

func TestSummary_UnknownCostIsAbsent(t *testing.T) {
	h := newHarness(t)
	h.events(event("a1", "2026-03-10T10:00:00.000Z", "/a", "gpt-5", 1000))

	s, err := h.engine.Summary(context.Background(), h.homeID, march)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), s.TotalTokens)
	assert.Nil(t, s.TotalCostUSD)
	assert.Nil(t, s.InputCostUSD)
	assert.Nil(t, s.CachedInputCostUSD)
	assert.Nil(t, s.OutputCostUSD)

	h.events(event("z1", "2026-03-10T10:00:00.000Z", "/z", "free-model", 10))
	h.rules(core.PricingRuleInput{ModelPattern: "free-model", EffectiveFrom: "2025-01-01T00:00:00Z"})
	s, err = h.engine.Summary(context.Background(), h.homeID, march)
	require.NoError(t, err)
	require.NotNil(t, s.TotalCostUSD, "a zero-priced rule is a known cost")
	assert.Zero(t, *s.TotalCostUSD)
}

func TestBreakdownByModel(t *testing.T) {
	h := newHarness(t)
	h.rules(perToken("gpt-5*"))
	stored := event("m1", "2026-03-10T10:00:00.000Z", "/m", "mystery", 500)
	stored.CostUSD = core.Float64Ptr(0.25)
	h.events(
		event("a1", "2026-03-10T10:00:00.000Z", "/a", "gpt-5", 2000),
		event("u1", "2026-03-10T10:00:00.000Z", "/u", "unpriced", 500),
		stored,
	)

	got, err := h.engine.BreakdownByModel(context.Background(), h.homeID, march)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "gpt-5", got[0].Model)
	require.NotNil(t, got[0].TotalCostUSD)
	assert.InDelta(t, 0.002, *got[0].TotalCostUSD, 1e-12)

	assert.Equal(t, "mystery", got[1].Model, "ties sort by model name")
	require.NotNil(t, got[1].TotalCostUSD)
	assert.InDelta(t, 0.25, *got[1].TotalCostUSD, 1e-12)

	assert.Equal(t, "unpriced", got[2].Model)
	assert.Nil(t, got[2].TotalCostUSD)
}

func TestBreakdownByModelCostsAndTokens(t *testing.T) {
	h := newHarness(t)
	h.rules(perToken("gpt-5*"))
	h.events(
		event("a1", "2026-03-10T10:00:00.000Z", "/a", "gpt-5", 1000),
		event("a2", "2026-03-10T10:05:00.000Z", "/a", "gpt-5", 3000),
		event("o1", "2026-03-10T10:00:00.000Z", "/o", "o3", 5000),
	)
	ctx := context.Background()

	tokens, err := h.engine.BreakdownByModelTokens(ctx, h.homeID, march)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "o3", tokens[0].Model)
	assert.Equal(t, uint64(5000), tokens[0].TotalTokens)
	assert.Equal(t, "gpt-5", tokens[1].Model)
	assert.Equal(t, uint64(3000), tokens[1].TotalTokens)

	costs, err := h.engine.BreakdownByModelCosts(ctx, h.homeID, march)
	require.NoError(t, err)
	require.Len(t, costs, 2)
	assert.Nil(t, costs[0].TotalCostUSD)
	require.NotNil(t, costs[1].TotalCostUSD)
	assert.InDelta(t, 0.003, *costs[1].TotalCostUSD, 1e-12)
	require.NotNil(t, costs[1].CachedInputCostUSD)
	assert.Zero(t, *costs[1].CachedInputCostUSD)
}

func TestBreakdownByModelEffort(t *testing.T) {
	h := newHarness(t)
	h.rules(perToken("gpt-5*"))
	high := event("a1", "2026-03-10T10:00:00.000Z", "/a", "gpt-5", 1000)
	high.ReasoningEffort = core.StringPtr("high")
	unknown := event("b1", "2026-03-10T10:00:00.000Z", "/b", "gpt-5", 300)
	unknown.ReasoningEffort = core.StringPtr("Unknown")
	none := event("c1", "2026-03-10T10:00:00.000Z", "/c", "gpt-5", 200)
	h.events(high, unknown, none)
	ctx := context.Background()

	tokens, err := h.engine.BreakdownByModelEffortTokens(ctx, h.homeID, march)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.NotNil(t, tokens[0].ReasoningEffort)
	assert.Equal(t, "high", *tokens[0].ReasoningEffort)
	assert.Equal(t, uint64(1000), tokens[0].TotalTokens)
	require.NotNil(t, tokens[1].ReasoningEffort)
	assert.Equal(t, "low", *tokens[1].ReasoningEffort)
	assert.Equal(t, uint64(500), tokens[1].TotalTokens)

	costs, err := h.engine.BreakdownByModelEffortCosts(ctx, h.homeID, march)
	require.NoError(t, err)
	require.Len(t, costs, 2)
	require.NotNil(t, costs[1].TotalCostUSD)
	assert.InDelta(t, 0.0005, *costs[1].TotalCostUSD, 1e-12)
}

func TestTimeSeries(t *testing.T) {
	h := newHarness(t)
	h.engine.loc = time.FixedZone("UTC+2", 2*60*60)
	priced := event("c1", "2026-03-10T21:30:00.000Z", "/c", "gpt-5", 100)
	priced.CostUSD = core.Float64Ptr(0.5)
	h.events(
		event("a1", "2026-03-10T10:15:00.000Z", "/a", "gpt-5", 100),
		event("a2", "2026-03-10T10:45:00.000Z", "/a", "gpt-5", 250),
		event("a3", "2026-03-10T11:05:00.000Z", "/a", "gpt-5", 300),
		priced,
		event("d1", "2026-03-10T22:30:00.000Z", "/d", "gpt-5", 40),
	)
	ctx := context.Background()

	hourly, err := h.engine.TimeSeries(ctx, h.homeID, march, BucketHour, MetricTokens)
	require.NoError(t, err)
	assert.Equal(t, []core.TimeSeriesPoint{
		{BucketStart: "2026-03-10T12:00:00+02:00", Value: 250},
		{BucketStart: "2026-03-10T13:00:00+02:00", Value: 50},
		{BucketStart: "2026-03-10T23:00:00+02:00", Value: 100},
		{BucketStart: "2026-03-11T00:00:00+02:00", Value: 40},
	}, hourly)

	daily, err := h.engine.TimeSeries(ctx, h.homeID, march, BucketDay, MetricCost)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2026-03-10T00:00:00+02:00", daily[0].BucketStart)
	assert.InDelta(t, 0.5, daily[0].Value, 1e-12)
	assert.Equal(t, "2026-03-11T00:00:00+02:00", daily[1].BucketStart)
	assert.Zero(t, daily[1].Value)

	_, err = h.engine.TimeSeries(ctx, h.homeID, march, "week", MetricTokens)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
	_, err = ParseMetric("requests")
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
	b, err := ParseBucket("")
	require.NoError(t, err)
	assert.Equal(t, BucketDay, b)
}

func TestContextAndSessions(t *testing.T) {
	h := newHarness(t)
	withContext := func(id, ts string, used, window uint64) core.UsageEvent {
		ev := event(id, ts, "/s/rollout-2026-03-15-"+id+".jsonl", "gpt-5", used)
		ev.SessionID = id
		ev.Context = core.ContextStatus{ContextUsed: used, ContextWindow: window}
		return ev
	}
	h.events(
		withContext("x", "2026-03-15T11:30:00.000Z", 2000, 10000),
		withContext("y", "2026-03-15T10:30:00.000Z", 1000, 10000),
		withContext("z", "2026-03-15T11:45:00.000Z", 0, 0),
	)
	ctx := context.Background()

	latest, err := h.engine.LatestContext(ctx, h.homeID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "z", latest.SessionID)
	assert.Equal(t, "2026-03-15T11:45:00.000Z", latest.TS)

	stats, err := h.engine.ContextPressure(ctx, h.homeID, march)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.SampleCount)
	require.NotNil(t, stats.AvgPressurePct)
	assert.InDelta(t, 15.0, *stats.AvgPressurePct, 1e-9)

	sessions, err := h.engine.ActiveSessions(ctx, h.homeID, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2, "default window is an hour")
	assert.Equal(t, "z", sessions[0].SessionID)
	assert.Equal(t, "x", sessions[1].SessionID)

	sessions, err = h.engine.ActiveSessions(ctx, h.homeID, 120)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}

func TestEvents(t *testing.T) {
	h := newHarness(t)
	h.events(
		event("a1", "2026-03-10T10:00:00.000Z", "/a", "gpt-5", 1),
		event("a2", "2026-03-10T11:00:00.000Z", "/a", "gpt-5", 2),
		event("b1", "2026-03-10T12:00:00.000Z", "/b", "o3", 3),
	)
	ctx := context.Background()

	all, err := h.engine.Events(ctx, h.homeID, march, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b1", all[0].ID)

	filtered, err := h.engine.Events(ctx, h.homeID, march, core.StringPtr("gpt-5"), 1, 1)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "a1", filtered[0].ID)

	none, err := h.engine.Events(ctx, h.homeID, core.TimeRange{Start: "2020-01-01T00:00:00.000Z", End: "2020-01-02T00:00:00.000Z"}, nil, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = h.engine.Events(ctx, h.homeID, march, nil, 10, -1)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}
