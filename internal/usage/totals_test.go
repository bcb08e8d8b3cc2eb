package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

func TestTotalFromTotals(t *testing.T) {
	tests := []struct {
		name   string
		totals []uint64
		want   uint64
		ok     bool
	}{
		{"empty", nil, 0, false},
		{"monotonic", []uint64{100, 200, 350}, 350, true},
		{"reset", []uint64{100, 200, 50, 80}, 280, true},
		{"repeated resets", []uint64{1000, 1500, 400, 900}, 2400, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TotalFromTotals(tt.totals)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotalsFromUsage_SumsSegmentMaxima(t *testing.T) {
	snapshots := []core.UsageTotals{
		{InputTokens: 10, OutputTokens: 2, TotalTokens: 12},
		{InputTokens: 20, OutputTokens: 5, TotalTokens: 25},
		{InputTokens: 4, OutputTokens: 1, TotalTokens: 5},
	}
	got, ok := TotalsFromUsage(snapshots)
	assert.True(t, ok)
	assert.Equal(t, core.UsageTotals{InputTokens: 24, OutputTokens: 6, TotalTokens: 30}, got)

	_, ok = TotalsFromUsage(nil)
	assert.False(t, ok)
}
