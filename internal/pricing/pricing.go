// Package pricing selects versioned, pattern-matched pricing rules and turns
// token deltas into dollar costs.
package pricing

import (
	"strings"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

const tokensPerMillion = 1_000_000.0

// Rules is an immutable rule set. One value is shared by every ingest worker
// of a run; nothing may modify it after construction.
type Rules []core.PricingRule

// MatchesPattern reports whether model matches pattern, case-insensitively.
// "*" matches everything. Otherwise the pattern's literal fragments must
// appear in order, a non-empty leading fragment anchored at the start, and
// the model must be fully consumed unless the pattern ends with "*".
func MatchesPattern(model, pattern string) bool {
	model = strings.ToLower(model)
	pattern = strings.ToLower(pattern)
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return model == pattern
	}
	parts := strings.Split(pattern, "*")
	remainder := model
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(remainder, part)
		if idx < 0 || (i == 0 && idx != 0) {
			return false
		}
		remainder = remainder[idx+len(part):]
	}
	return strings.HasSuffix(pattern, "*") || remainder == ""
}

// RuleApplies reports whether rule covers model at ts. The effective window
// is [EffectiveFrom, EffectiveTo) on canonical timestamp strings.
func RuleApplies(rule core.PricingRule, model, ts string) bool {
	if !MatchesPattern(model, rule.ModelPattern) {
		return false
	}
	if rule.EffectiveFrom > ts {
		return false
	}
	if rule.EffectiveTo != nil && ts >= *rule.EffectiveTo {
		return false
	}
	return true
}

// Select returns the applicable rule with the latest EffectiveFrom. On equal
// EffectiveFrom the later rule in slice order wins.
func (r Rules) Select(model, ts string) (core.PricingRule, bool) {
	var best core.PricingRule
	found := false
	for _, rule := range r {
		if !RuleApplies(rule, model, ts) {
			continue
		}
		if !found || rule.EffectiveFrom >= best.EffectiveFrom {
			best = rule
			found = true
		}
	}
	return best, found
}

// Covers reports whether any rule applies to model at ts.
func (r Rules) Covers(model, ts string) bool {
	_, ok := r.Select(model, ts)
	return ok
}

// Breakdown prices delta with the selected rule, or returns a zero breakdown
// when nothing applies. Callers that must tell "unknown" from "$0" check
// Covers or use Cost.
func (r Rules) Breakdown(model, ts string, delta core.UsageTotals) core.CostBreakdown {
	rule, ok := r.Select(model, ts)
	if !ok {
		return core.CostBreakdown{}
	}
	return ComputeBreakdown(delta, rule)
}

// Cost returns the total cost of delta, or nil when no rule applies.
func (r Rules) Cost(model, ts string, delta core.UsageTotals) *float64 {
	rule, ok := r.Select(model, ts)
	if !ok {
		return nil
	}
	return core.Float64Ptr(ComputeBreakdown(delta, rule).TotalCostUSD)
}

// ComputeBreakdown prices usage with rule. Cached input is billed at the
// cached rate and excluded from the input rate. Reasoning tokens are part of
// output tokens and carry no separate charge.
func ComputeBreakdown(u core.UsageTotals, rule core.PricingRule) core.CostBreakdown {
	var nonCached uint64
	if u.InputTokens > u.CachedInputTokens {
		nonCached = u.InputTokens - u.CachedInputTokens
	}
	input := float64(nonCached) / tokensPerMillion * rule.InputPer1M
	cached := float64(u.CachedInputTokens) / tokensPerMillion * rule.CachedInputPer1M
	output := float64(u.OutputTokens) / tokensPerMillion * rule.OutputPer1M
	return core.CostBreakdown{
		InputCostUSD:       input,
		CachedInputCostUSD: cached,
		OutputCostUSD:      output,
		TotalCostUSD:       input + cached + output,
	}
}
