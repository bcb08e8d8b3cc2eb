// Package usage reconstructs per-turn token usage from the cumulative
// counters Codex writes into its transcripts.
package usage

import (
	"math"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

// Delta returns the usage added between prev and cur. A total that went down
// means the session's counters were reset (context compaction), so cur is
// itself the delta.
func Delta(prev *core.UsageTotals, cur core.UsageTotals) core.UsageTotals {
	if prev == nil || cur.TotalTokens < prev.TotalTokens {
		return cur
	}
	return core.UsageTotals{
		InputTokens:           subSat(cur.InputTokens, prev.InputTokens),
		CachedInputTokens:     subSat(cur.CachedInputTokens, prev.CachedInputTokens),
		OutputTokens:          subSat(cur.OutputTokens, prev.OutputTokens),
		ReasoningOutputTokens: subSat(cur.ReasoningOutputTokens, prev.ReasoningOutputTokens),
		TotalTokens:           subSat(cur.TotalTokens, prev.TotalTokens),
	}
}

// Add sums two totals, saturating at the uint64 maximum.
func Add(a, b core.UsageTotals) core.UsageTotals {
	return core.UsageTotals{
		InputTokens:           addSat(a.InputTokens, b.InputTokens),
		CachedInputTokens:     addSat(a.CachedInputTokens, b.CachedInputTokens),
		OutputTokens:          addSat(a.OutputTokens, b.OutputTokens),
		ReasoningOutputTokens: addSat(a.ReasoningOutputTokens, b.ReasoningOutputTokens),
		TotalTokens:           addSat(a.TotalTokens, b.TotalTokens),
	}
}

// Tracker keeps the last cumulative snapshot per source. Rows must be fed in
// (source, timestamp) order for the reset heuristic to hold.
type Tracker struct {
	last map[string]core.UsageTotals
}

func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]core.UsageTotals)}
}

// Next returns the delta for cur on source and makes cur the new baseline.
func (t *Tracker) Next(source string, cur core.UsageTotals) core.UsageTotals {
	var prev *core.UsageTotals
	if p, ok := t.last[source]; ok {
		prev = &p
	}
	t.last[source] = cur
	return Delta(prev, cur)
}

// Seed sets the baseline for source without producing a delta.
func (t *Tracker) Seed(source string, baseline core.UsageTotals) {
	t.last[source] = baseline
}

func subSat(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
