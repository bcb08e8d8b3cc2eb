package usage

import "github.com/janekbaraniewski/codextracker/internal/core"

// TotalFromTotals rebuilds the overall total from a sequence of bare
// cumulative counters: each run of non-decreasing values contributes its
// maximum. ok is false for an empty sequence.
func TotalFromTotals(totals []uint64) (total uint64, ok bool) {
	if len(totals) == 0 {
		return 0, false
	}
	segmentMax := totals[0]
	var sum uint64
	for _, v := range totals[1:] {
		if v >= segmentMax {
			segmentMax = v
			continue
		}
		sum = addSat(sum, segmentMax)
		segmentMax = v
	}
	return addSat(sum, segmentMax), true
}

// TotalsFromUsage is TotalFromTotals over full usage snapshots. Within a
// segment every counter keeps its own maximum.
func TotalsFromUsage(snapshots []core.UsageTotals) (core.UsageTotals, bool) {
	if len(snapshots) == 0 {
		return core.UsageTotals{}, false
	}
	segmentMax := snapshots[0]
	var sum core.UsageTotals
	for _, u := range snapshots[1:] {
		if u.TotalTokens >= segmentMax.TotalTokens {
			segmentMax = maxUsage(segmentMax, u)
			continue
		}
		sum = Add(sum, segmentMax)
		segmentMax = u
	}
	return Add(sum, segmentMax), true
}

func maxUsage(a, b core.UsageTotals) core.UsageTotals {
	return core.UsageTotals{
		InputTokens:           max(a.InputTokens, b.InputTokens),
		CachedInputTokens:     max(a.CachedInputTokens, b.CachedInputTokens),
		OutputTokens:          max(a.OutputTokens, b.OutputTokens),
		ReasoningOutputTokens: max(a.ReasoningOutputTokens, b.ReasoningOutputTokens),
		TotalTokens:           max(a.TotalTokens, b.TotalTokens),
	}
}
