// Package analytics answers read-only questions over stored usage. Every
// aggregate rebuilds per-source deltas from cumulative rows first.
package analytics

import (
	"context"
	"time"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/pricing"
	"github.com/janekbaraniewski/codextracker/internal/store"
)

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

type Engine struct {
	store *store.Store
	now   func() time.Time
	loc   *time.Location
}

func New(st *store.Store) *Engine {
	return &Engine{store: st, now: time.Now, loc: time.Local}
}

// pricedRow is a stored row with its reconstructed delta.
type pricedRow struct {
	core.UsageEvent
	Delta core.UsageTotals
}

// load reads rows of homeID in r and the current rules, with deltas rebuilt
// per source.
func (e *Engine) load(ctx context.Context, homeID int64, r core.TimeRange, model *string) ([]pricedRow, pricing.Rules, error) {
	rows, err := e.store.UsageRows(ctx, homeID, r, model)
	if err != nil {
		return nil, nil, err
	}
	rules, err := e.store.ListPricingRules(ctx)
	if err != nil {
		return nil, nil, err
	}
	return withDeltas(rows), rules, nil
}

func (e *Engine) MessageCount(ctx context.Context, homeID int64, r core.TimeRange) (uint64, error) {
	return e.store.MessageCount(ctx, homeID, r)
}

// Events pages raw usage rows newest first. limit <= 0 selects the default
// page size and large limits are capped.
func (e *Engine) Events(ctx context.Context, homeID int64, r core.TimeRange, model *string, limit, offset int) ([]core.UsageEvent, error) {
	if offset < 0 {
		return nil, core.InvalidInput("offset must not be negative")
	}
	switch {
	case limit <= 0:
		limit = defaultEventsLimit
	case limit > maxEventsLimit:
		limit = maxEventsLimit
	}
	events, err := e.store.ListUsageEvents(ctx, homeID, r, model, limit, offset)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []core.UsageEvent{}
	}
	return events, nil
}
