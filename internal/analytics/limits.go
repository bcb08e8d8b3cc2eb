package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

var limitDurations = map[string]time.Duration{
	core.LimitType5h: 5 * time.Hour,
	core.LimitType7d: 7 * 24 * time.Hour,
}

// LatestLimits returns the newest still-current 5h and 7d snapshots.
func (e *Engine) LatestLimits(ctx context.Context, homeID int64) (core.UsageLimitLatest, error) {
	now := core.FormatTimestamp(e.now())
	primary, err := e.store.CurrentLimitSnapshot(ctx, homeID, core.LimitType5h, now)
	if err != nil {
		return core.UsageLimitLatest{}, err
	}
	secondary, err := e.store.CurrentLimitSnapshot(ctx, homeID, core.LimitType7d, now)
	if err != nil {
		return core.UsageLimitLatest{}, err
	}
	return core.UsageLimitLatest{Primary: primary, Secondary: secondary}, nil
}

// CurrentWindows totals usage inside the current 5h and 7d windows.
func (e *Engine) CurrentWindows(ctx context.Context, homeID int64) (core.UsageLimitCurrentResponse, error) {
	primary, err := e.CurrentWindow(ctx, homeID, core.LimitType5h)
	if err != nil {
		return core.UsageLimitCurrentResponse{}, err
	}
	secondary, err := e.CurrentWindow(ctx, homeID, core.LimitType7d)
	if err != nil {
		return core.UsageLimitCurrentResponse{}, err
	}
	return core.UsageLimitCurrentResponse{Primary: primary, Secondary: secondary}, nil
}

// CurrentWindow returns nil when no snapshot of limitType resets in the
// future or the type is unknown.
func (e *Engine) CurrentWindow(ctx context.Context, homeID int64, limitType string) (*core.UsageLimitCurrentWindow, error) {
	duration, ok := limitDurations[limitType]
	if !ok {
		return nil, nil
	}
	snap, err := e.store.CurrentLimitSnapshot(ctx, homeID, limitType, core.FormatTimestamp(e.now()))
	if err != nil || snap == nil {
		return nil, err
	}
	reset, err := time.Parse(time.RFC3339Nano, snap.ResetAt)
	if err != nil {
		return nil, nil
	}

	r := core.TimeRange{Start: core.FormatTimestamp(reset.Add(-duration)), End: snap.ResetAt}
	summary, count, err := e.windowTotals(ctx, homeID, r)
	if err != nil {
		return nil, err
	}
	return &core.UsageLimitCurrentWindow{
		WindowStart:  r.Start,
		WindowEnd:    r.End,
		TotalTokens:  core.Uint64Ptr(summary.TotalTokens),
		TotalCostUSD: summary.TotalCostUSD,
		MessageCount: core.Uint64Ptr(count),
	}, nil
}

// Windows7d splits history at each recorded 7d reset. The earliest window
// has no prior reset, so it is back-dated a full period and marked
// incomplete. The last limit windows are returned oldest first; limit <= 0
// returns all.
func (e *Engine) Windows7d(ctx context.Context, homeID int64, limit int) ([]core.UsageLimitWindow, error) {
	raw, err := e.store.LimitResets(ctx, homeID, core.LimitType7d)
	if err != nil {
		return nil, err
	}
	resets := lo.Uniq(lo.FilterMap(raw, func(v string, _ int) (string, bool) {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return "", false
		}
		return core.FormatTimestamp(t.Truncate(time.Minute)), true
	}))
	sort.Strings(resets)
	if limit > 0 && len(resets) > limit {
		resets = resets[len(resets)-limit-1:]
	}

	windows := make([]core.UsageLimitWindow, 0, len(resets))
	for i, end := range resets {
		var start string
		complete := i > 0
		if complete {
			start = resets[i-1]
		} else {
			t, _ := time.Parse(time.RFC3339Nano, end)
			start = core.FormatTimestamp(t.Add(-limitDurations[core.LimitType7d]))
		}
		summary, count, err := e.windowTotals(ctx, homeID, core.TimeRange{Start: start, End: end})
		if err != nil {
			return nil, err
		}
		windows = append(windows, core.UsageLimitWindow{
			WindowStart:  core.StringPtr(start),
			WindowEnd:    end,
			TotalTokens:  core.Uint64Ptr(summary.TotalTokens),
			TotalCostUSD: summary.TotalCostUSD,
			MessageCount: core.Uint64Ptr(count),
			Complete:     complete,
		})
	}
	if limit > 0 && len(windows) > limit {
		windows = windows[len(windows)-limit:]
	}
	return windows, nil
}

func (e *Engine) windowTotals(ctx context.Context, homeID int64, r core.TimeRange) (core.UsageSummary, uint64, error) {
	summary, err := e.Summary(ctx, homeID, r)
	if err != nil {
		return core.UsageSummary{}, 0, err
	}
	count, err := e.MessageCount(ctx, homeID, r)
	if err != nil {
		return core.UsageSummary{}, 0, err
	}
	return summary, count, nil
}
