package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/tracker"
)

func newDBCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database statistics and maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Row counts and database size",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			stats, err := app.StoreStats(cmd.Context())
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), stats, err)
			}
			return renderTable(cmd.OutOrStdout(), []string{"Table", "Rows"}, [][]string{
				{"homes", fmt.Sprint(stats.Homes)},
				{"usage events", fmt.Sprint(stats.UsageEvents)},
				{"message events", fmt.Sprint(stats.MessageEvents)},
				{"limit snapshots", fmt.Sprint(stats.LimitSnapshots)},
				{"ingest cursors", fmt.Sprint(stats.IngestCursors)},
				{"pricing rules", fmt.Sprint(stats.PricingRules)},
				{"migrations", fmt.Sprint(stats.Migrations)},
				{"size", formatNumber(float64(stats.SizeBytes)) + "B"},
			}, 1)
		}),
	}, &cobra.Command{
		Use:   "compact",
		Short: "Drop orphaned rows and repeated limit snapshots, then vacuum",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			result, err := app.Compact(cmd.Context())
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), result, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned rows and %d repeated snapshots\n",
				result.OrphanRowsRemoved, result.DuplicateSnapshotsRemoved)
			return nil
		}),
	})
	return cmd
}
