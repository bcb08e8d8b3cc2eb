package parsers

import (
	"math"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

var (
	rateLimitPaths = [][]string{
		{"payload", "rate_limits"},
		{"payload", "info", "rate_limits"},
		{"rate_limits"},
	}
	percentLeftKeys = []string{"percent_left", "remaining_percent", "remaining_pct", "percent_remaining", "remaining"}
	percentUsedKeys = []string{"used_percent", "used_pct", "percent_used", "used"}
	resetKeys       = []string{"reset_at", "resets_at", "resetAt", "reset", "reset_time", "resetTime"}
)

// rateLimitWindows maps rate-limit object keys to limit types, in the order
// snapshots are emitted.
var rateLimitWindows = []struct {
	key       string
	limitType string
}{
	{"primary", core.LimitType5h},
	{"secondary", core.LimitType7d},
}

func limitSnapshots(obj map[string]any, line, source string) []core.UsageLimitSnapshot {
	var limits map[string]any
	for _, path := range rateLimitPaths {
		if v, ok := lookup(obj, path...); ok {
			if m, ok := v.(map[string]any); ok {
				limits = m
				break
			}
		}
	}
	if limits == nil {
		return nil
	}
	observedAt, ok := eventTimestamp(obj)
	if !ok {
		return nil
	}

	var out []core.UsageLimitSnapshot
	for _, w := range rateLimitWindows {
		entry, ok := limits[w.key].(map[string]any)
		if !ok {
			continue
		}
		percent, ok := percentLeft(entry)
		if !ok {
			continue
		}
		resetAt, ok := findResetAt(entry, observedAt)
		if !ok {
			continue
		}
		out = append(out, core.UsageLimitSnapshot{
			LimitType:   w.limitType,
			PercentLeft: percent,
			ResetAt:     resetAt,
			ObservedAt:  observedAt,
			Source:      source,
			RawLine:     core.StringPtr(line),
		})
	}
	return out
}

func percentLeft(entry map[string]any) (float64, bool) {
	if v, ok := firstFloat(entry, percentLeftKeys); ok {
		return normalizePercent(v), true
	}
	if v, ok := firstFloat(entry, percentUsedKeys); ok {
		return clampPercent(100 - normalizePercent(v)), true
	}
	return 0, false
}

// findResetAt returns the first reset key whose value parses.
func findResetAt(entry map[string]any, observedAt string) (string, bool) {
	for _, key := range resetKeys {
		v, ok := entry[key]
		if !ok || v == nil {
			continue
		}
		if ts, ok := parseResetAt(v, observedAt); ok {
			return ts, true
		}
	}
	return "", false
}

func firstFloat(entry map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		if v, ok := entry[key]; ok {
			if f, ok := asFloat(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// normalizePercent treats values at or below 1 as fractions.
func normalizePercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v <= 1 {
		v *= 100
	}
	return clampPercent(v)
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
