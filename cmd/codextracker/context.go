package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/tracker"
)

func newContextCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Context window occupancy and active sessions",
	}
	cmd.AddCommand(
		newContextLatestCommand(opts),
		newContextStatsCommand(opts),
		newContextSessionsCommand(opts),
	)
	return cmd
}

func newContextLatestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Context reported by the newest event",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			homeID, err := activeHomeID(cmd, app)
			if err != nil {
				return err
			}
			snap, err := app.Analytics().LatestContext(cmd.Context(), homeID)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), snap, err)
			}
			if snap == nil {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no usage recorded"))
				return nil
			}
			pressure := "-"
			if snap.ContextWindow > 0 {
				pressure = formatPercent(float64(snap.ContextUsed) / float64(snap.ContextWindow) * 100)
			}
			return renderTable(cmd.OutOrStdout(),
				[]string{"Time", "Session", "Model", "Used", "Window", "Pressure"},
				[][]string{{snap.TS, snap.SessionID, snap.Model,
					formatTokens(snap.ContextUsed), formatTokens(snap.ContextWindow), pressure}}, 3)
		}),
	}
}

func newContextStatsCommand(opts *rootOptions) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Average context pressure in a range",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			r, err := rf.resolve()
			if err != nil {
				return err
			}
			homeID, err := activeHomeID(cmd, app)
			if err != nil {
				return err
			}
			stats, err := app.Analytics().ContextPressure(cmd.Context(), homeID, r)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), stats, err)
			}
			avg := func(v *float64, percent bool) string {
				switch {
				case v == nil:
					return "-"
				case percent:
					return formatPercent(*v)
				default:
					return formatNumber(*v)
				}
			}
			return renderTable(cmd.OutOrStdout(),
				[]string{"Samples", "Avg used", "Avg window", "Avg pressure"},
				[][]string{{fmt.Sprint(stats.SampleCount), avg(stats.AvgContextUsed, false),
					avg(stats.AvgContextWindow, false), avg(stats.AvgPressurePct, true)}}, 0)
		}),
	}
	rf.bind(cmd)
	return cmd
}

func newContextSessionsCommand(opts *rootOptions) *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Sessions with activity in the last minutes",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			homeID, err := activeHomeID(cmd, app)
			if err != nil {
				return err
			}
			sessions, err := app.Analytics().ActiveSessions(cmd.Context(), homeID, minutes)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), sessions, err)
			}
			rows := make([][]string, len(sessions))
			for i, s := range sessions {
				rows[i] = []string{s.SessionID, s.Model, s.SessionStart, s.LastSeen,
					formatTokens(s.ContextUsed), formatTokens(s.ContextWindow)}
			}
			return renderTable(cmd.OutOrStdout(),
				[]string{"Session", "Model", "Started", "Last seen", "Used", "Window"}, rows, 4)
		}),
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "activity window in minutes (default: context_active_minutes setting)")
	return cmd
}
