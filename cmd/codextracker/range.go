package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

type rangeFlags struct {
	preset string
	start  string
	end    string
}

func (f *rangeFlags) bind(cmd *cobra.Command) {
	presets := make([]string, len(core.ValidRangePresets))
	for i, p := range core.ValidRangePresets {
		presets[i] = string(p)
	}
	cmd.Flags().StringVar(&f.preset, "range", string(core.DefaultRangePreset), "range preset: "+strings.Join(presets, ", "))
	cmd.Flags().StringVar(&f.start, "start", "", "range start (RFC3339); overrides --range")
	cmd.Flags().StringVar(&f.end, "end", "", "range end (RFC3339); defaults to now")
}

func (f *rangeFlags) resolve() (core.TimeRange, error) {
	return core.ResolveRange(core.RangeParams{Range: f.preset, Start: f.start, End: f.end}, time.Now())
}
