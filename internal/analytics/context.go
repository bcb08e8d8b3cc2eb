package analytics

import (
	"context"
	"time"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

func (e *Engine) ContextPressure(ctx context.Context, homeID int64, r core.TimeRange) (core.ContextPressureStats, error) {
	return e.store.ContextPressure(ctx, homeID, r)
}

// LatestContext returns the context reported by the newest event, or nil.
func (e *Engine) LatestContext(ctx context.Context, homeID int64) (*core.ContextSnapshot, error) {
	latest, err := e.store.LatestUsage(ctx, homeID)
	if err != nil || latest == nil {
		return nil, err
	}
	return &core.ContextSnapshot{
		TS:            latest.TS,
		Model:         latest.Model,
		SessionID:     latest.SessionID,
		ContextStatus: latest.Context,
	}, nil
}

// ActiveSessions lists sessions seen in the last minutes. A non-positive
// minutes uses the stored context_active_minutes setting.
func (e *Engine) ActiveSessions(ctx context.Context, homeID int64, minutes int) ([]core.ActiveSession, error) {
	if minutes <= 0 {
		m, err := e.store.ContextActiveMinutes(ctx)
		if err != nil {
			return nil, err
		}
		minutes = m
	}
	since := core.FormatTimestamp(e.now().Add(-time.Duration(minutes) * time.Minute))
	sessions, err := e.store.ActiveSessions(ctx, homeID, since)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []core.ActiveSession{}
	}
	return sessions, nil
}
