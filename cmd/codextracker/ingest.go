package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/tracker"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Ingest new transcript lines of the active home",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			stats, err := app.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			return printIngestStats(cmd.OutOrStdout(), stats)
		}),
	}
}

func printIngestStats(w io.Writer, stats core.IngestStats) error {
	err := renderTable(w,
		[]string{"Files", "Skipped", "Events", "Bytes", "Issues"},
		[][]string{{
			fmt.Sprint(stats.FilesScanned),
			fmt.Sprint(stats.FilesSkipped),
			fmt.Sprint(stats.EventsInserted),
			formatNumber(float64(stats.BytesRead)),
			fmt.Sprint(len(stats.Issues)),
		}}, 0)
	if err != nil {
		return err
	}
	for _, issue := range stats.Issues {
		fmt.Fprintln(w, errStyle.Render(issue.FilePath+": "+issue.Message))
	}
	return nil
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Ingest continuously as transcripts change",
		Long:  "Runs an ingest now and again after each burst of transcript changes until interrupted.",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			home, err := app.ActiveHome(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !opts.json {
				printTitle(out, "Watching "+home.Path)
			}
			return app.Watch(cmd.Context(), func(stats core.IngestStats) {
				if opts.json {
					_ = printJSON(out, stats)
					return
				}
				line := fmt.Sprintf("%s events=%d files=%d skipped=%d",
					time.Now().Format(time.TimeOnly), stats.EventsInserted, stats.FilesScanned, stats.FilesSkipped)
				if len(stats.Issues) > 0 {
					fmt.Fprintln(out, errStyle.Render(fmt.Sprintf("%s issues=%d", line, len(stats.Issues))))
					return
				}
				fmt.Fprintln(out, okStyle.Render(line))
			})
		}),
	}
}
