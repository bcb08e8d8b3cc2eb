package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/tracker"
)

func newLimitsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Rate-limit snapshots and usage per limit window",
	}
	cmd.AddCommand(
		newLimitsLatestCommand(opts),
		newLimitsCurrentCommand(opts),
		newLimitsWindowsCommand(opts),
	)
	return cmd
}

func newLimitsLatestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Newest 5h and 7d snapshots that have not reset yet",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			homeID, err := activeHomeID(cmd, app)
			if err != nil {
				return err
			}
			latest, err := app.Analytics().LatestLimits(cmd.Context(), homeID)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), latest, err)
			}
			var rows [][]string
			for _, snap := range []*core.UsageLimitSnapshot{latest.Primary, latest.Secondary} {
				if snap == nil {
					continue
				}
				rows = append(rows, []string{snap.LimitType, formatPercent(snap.PercentLeft), snap.ResetAt, snap.ObservedAt})
			}
			return renderTable(cmd.OutOrStdout(), []string{"Limit", "Left", "Resets", "Observed"}, rows, 1)
		}),
	}
}

func newLimitsCurrentCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Usage inside the current 5h and 7d windows",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			homeID, err := activeHomeID(cmd, app)
			if err != nil {
				return err
			}
			current, err := app.Analytics().CurrentWindows(cmd.Context(), homeID)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), current, err)
			}
			var rows [][]string
			add := func(name string, w *core.UsageLimitCurrentWindow) {
				if w == nil {
					return
				}
				rows = append(rows, []string{name, w.WindowStart, w.WindowEnd,
					formatOptionalUint(w.TotalTokens), formatCost(w.TotalCostUSD), formatOptionalUint(w.MessageCount)})
			}
			add(core.LimitType5h, current.Primary)
			add(core.LimitType7d, current.Secondary)
			return renderTable(cmd.OutOrStdout(), []string{"Limit", "Start", "End", "Tokens", "Cost", "Messages"}, rows, 3)
		}),
	}
}

func newLimitsWindowsCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "windows",
		Short: "Usage per historical 7d window",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			homeID, err := activeHomeID(cmd, app)
			if err != nil {
				return err
			}
			windows, err := app.Analytics().Windows7d(cmd.Context(), homeID, limit)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), windows, err)
			}
			return printWindows(cmd.OutOrStdout(), windows)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 8, "number of most recent windows (0 for all)")
	return cmd
}

func printWindows(w io.Writer, windows []core.UsageLimitWindow) error {
	rows := make([][]string, len(windows))
	for i, win := range windows {
		end := win.WindowEnd
		if !win.Complete {
			end += dimStyle.Render(" (partial)")
		}
		rows[i] = []string{formatOptional(win.WindowStart), end,
			formatOptionalUint(win.TotalTokens), formatCost(win.TotalCostUSD), formatOptionalUint(win.MessageCount)}
	}
	return renderTable(w, []string{"Start", "End", "Tokens", "Cost", "Messages"}, rows, 2)
}
