package analytics

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/pricing"
	"github.com/janekbaraniewski/codextracker/internal/usage"
)

func withDeltas(rows []core.UsageEvent) []pricedRow {
	tracker := usage.NewTracker()
	out := make([]pricedRow, len(rows))
	for i, row := range rows {
		out[i] = pricedRow{UsageEvent: row, Delta: tracker.Next(row.Source, row.Usage)}
	}
	return out
}

// Summary totals usage in r. Costs are priced from the current rules and
// present only when a rule covered at least one row.
func (e *Engine) Summary(ctx context.Context, homeID int64, r core.TimeRange) (core.UsageSummary, error) {
	rows, rules, err := e.load(ctx, homeID, r, nil)
	if err != nil {
		return core.UsageSummary{}, err
	}
	return summarize(rows, rules), nil
}

func summarize(rows []pricedRow, rules pricing.Rules) core.UsageSummary {
	var (
		totals core.UsageTotals
		cost   core.CostBreakdown
		known  bool
	)
	for _, row := range rows {
		totals = usage.Add(totals, row.Delta)
		if rule, ok := rules.Select(row.Model, row.TS); ok {
			cost = cost.Add(pricing.ComputeBreakdown(row.Delta, rule))
			known = true
		}
	}
	fields := core.KnownCost(cost, known)
	return core.UsageSummary{
		TotalTokens:           totals.TotalTokens,
		InputTokens:           totals.InputTokens,
		CachedInputTokens:     totals.CachedInputTokens,
		OutputTokens:          totals.OutputTokens,
		ReasoningOutputTokens: totals.ReasoningOutputTokens,
		TotalCostUSD:          fields.TotalCostUSD,
		InputCostUSD:          fields.InputCostUSD,
		CachedInputCostUSD:    fields.CachedInputCostUSD,
		OutputCostUSD:         fields.OutputCostUSD,
	}
}

// BreakdownByModel totals tokens and cost per model. A row's stored cost is
// preferred over repricing.
func (e *Engine) BreakdownByModel(ctx context.Context, homeID int64, r core.TimeRange) ([]core.ModelBreakdown, error) {
	rows, rules, err := e.load(ctx, homeID, r, nil)
	if err != nil {
		return nil, err
	}

	type acc struct {
		tokens uint64
		cost   float64
		known  bool
	}
	byModel := map[string]*acc{}
	for _, row := range rows {
		a, ok := byModel[row.Model]
		if !ok {
			a = &acc{}
			byModel[row.Model] = a
		}
		a.tokens = addTokens(a.tokens, row.Delta.TotalTokens)
		if row.CostUSD != nil {
			a.cost += *row.CostUSD
			a.known = true
		} else if c := rules.Cost(row.Model, row.TS, row.Delta); c != nil {
			a.cost += *c
			a.known = true
		}
	}

	out := lo.MapToSlice(byModel, func(model string, a *acc) core.ModelBreakdown {
		b := core.ModelBreakdown{Model: model, TotalTokens: a.tokens}
		if a.known {
			b.TotalCostUSD = core.Float64Ptr(a.cost)
		}
		return b
	})
	sort.Slice(out, func(i, j int) bool {
		return byTokens(out[i].TotalTokens, out[j].TotalTokens, out[i].Model, out[j].Model)
	})
	return out, nil
}

// groupKey identifies a breakdown bucket; effort is empty for per-model
// groupings.
type groupKey struct {
	model  string
	effort string
}

type group struct {
	totals core.UsageTotals
	cost   core.CostBreakdown
	known  bool
}

func groupRows(rows []pricedRow, rules pricing.Rules, withEffort bool) map[groupKey]*group {
	groups := map[groupKey]*group{}
	for _, row := range rows {
		key := groupKey{model: row.Model}
		if withEffort && row.ReasoningEffort != nil {
			key.effort = *row.ReasoningEffort
		}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		g.totals = usage.Add(g.totals, row.Delta)
		if rule, ok := rules.Select(row.Model, row.TS); ok {
			g.cost = g.cost.Add(pricing.ComputeBreakdown(row.Delta, rule))
			g.known = true
		}
	}
	return groups
}

func sortedKeys(groups map[groupKey]*group) []groupKey {
	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool {
		a, b := groups[keys[i]], groups[keys[j]]
		if a.totals.TotalTokens != b.totals.TotalTokens {
			return a.totals.TotalTokens > b.totals.TotalTokens
		}
		if keys[i].model != keys[j].model {
			return keys[i].model < keys[j].model
		}
		return keys[i].effort < keys[j].effort
	})
	return keys
}

func (e *Engine) BreakdownByModelTokens(ctx context.Context, homeID int64, r core.TimeRange) ([]core.ModelTokenBreakdown, error) {
	rows, rules, err := e.load(ctx, homeID, r, nil)
	if err != nil {
		return nil, err
	}
	groups := groupRows(rows, rules, false)
	return lo.Map(sortedKeys(groups), func(k groupKey, _ int) core.ModelTokenBreakdown {
		return core.ModelTokenBreakdown{Model: k.model, UsageTotals: groups[k].totals}
	}), nil
}

func (e *Engine) BreakdownByModelCosts(ctx context.Context, homeID int64, r core.TimeRange) ([]core.ModelCostBreakdown, error) {
	rows, rules, err := e.load(ctx, homeID, r, nil)
	if err != nil {
		return nil, err
	}
	groups := groupRows(rows, rules, false)
	return lo.Map(sortedKeys(groups), func(k groupKey, _ int) core.ModelCostBreakdown {
		g := groups[k]
		return core.ModelCostBreakdown{
			Model:       k.model,
			UsageTotals: g.totals,
			CostFields:  core.KnownCost(g.cost, g.known),
		}
	}), nil
}

func (e *Engine) BreakdownByModelEffortTokens(ctx context.Context, homeID int64, r core.TimeRange) ([]core.ModelEffortTokenBreakdown, error) {
	rows, rules, err := e.load(ctx, homeID, r, nil)
	if err != nil {
		return nil, err
	}
	groups := groupRows(rows, rules, true)
	return lo.Map(sortedKeys(groups), func(k groupKey, _ int) core.ModelEffortTokenBreakdown {
		return core.ModelEffortTokenBreakdown{
			Model:           k.model,
			ReasoningEffort: effortPtr(k.effort),
			UsageTotals:     groups[k].totals,
		}
	}), nil
}

func (e *Engine) BreakdownByModelEffortCosts(ctx context.Context, homeID int64, r core.TimeRange) ([]core.ModelEffortCostBreakdown, error) {
	rows, rules, err := e.load(ctx, homeID, r, nil)
	if err != nil {
		return nil, err
	}
	groups := groupRows(rows, rules, true)
	return lo.Map(sortedKeys(groups), func(k groupKey, _ int) core.ModelEffortCostBreakdown {
		g := groups[k]
		return core.ModelEffortCostBreakdown{
			Model:           k.model,
			ReasoningEffort: effortPtr(k.effort),
			UsageTotals:     g.totals,
			CostFields:      core.KnownCost(g.cost, g.known),
		}
	}), nil
}

func effortPtr(effort string) *string {
	if effort == "" {
		return nil
	}
	return core.StringPtr(effort)
}

func byTokens(a, b uint64, modelA, modelB string) bool {
	if a != b {
		return a > b
	}
	return modelA < modelB
}

func addTokens(a, b uint64) uint64 {
	return usage.Add(core.UsageTotals{TotalTokens: a}, core.UsageTotals{TotalTokens: b}).TotalTokens
}
