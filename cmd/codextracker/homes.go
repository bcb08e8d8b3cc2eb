package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/tracker"
)

func newHomesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "homes",
		Short: "Manage tracked Codex homes",
	}
	cmd.AddCommand(
		newHomesListCommand(opts),
		newHomesAddCommand(opts),
		newHomesUseCommand(opts),
		newHomesDeleteCommand(opts),
		newHomesClearCommand(opts),
		newHomesDetectCommand(opts),
	)
	return cmd
}

type homeListing struct {
	core.Home
	Active bool            `json:"active"`
	Counts core.HomeCounts `json:"counts"`
}

func newHomesListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List homes with their stored row counts",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			ctx := cmd.Context()
			active, err := app.ActiveHome(ctx)
			if err != nil {
				return err
			}
			homes, err := app.ListHomes(ctx)
			if err != nil {
				return err
			}
			listing := make([]homeListing, len(homes))
			for i, h := range homes {
				counts, err := app.HomeCounts(ctx, h.ID)
				if err != nil {
					return err
				}
				listing[i] = homeListing{Home: h, Active: h.ID == active.ID, Counts: counts}
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), listing)
			}
			rows := make([][]string, len(listing))
			for i, l := range listing {
				marker := ""
				if l.Active {
					marker = okStyle.Render("*")
				}
				rows[i] = []string{marker, fmt.Sprint(l.ID), l.Label, l.Path, formatOptional(l.LastSeenAt),
					fmt.Sprint(l.Counts.UsageEvents), fmt.Sprint(l.Counts.MessageEvents), fmt.Sprint(l.Counts.IngestCursors)}
			}
			return renderTable(cmd.OutOrStdout(),
				[]string{"", "ID", "Label", "Path", "Last seen", "Events", "Messages", "Files"}, rows, 5)
		}),
	}
}

func newHomesAddCommand(opts *rootOptions) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Track a Codex home and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *tracker.App) error {
			home, err := app.CreateHome(cmd.Context(), args[0], label)
			if err != nil {
				return err
			}
			return printHome(cmd, opts, home, "Active home")
		}),
	}
	cmd.Flags().StringVar(&label, "label", "", "display label")
	return cmd
}

func newHomesUseCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a home active",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *tracker.App) error {
			id, err := parseHomeID(args[0])
			if err != nil {
				return err
			}
			home, err := app.ActivateHome(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printHome(cmd, opts, home, "Active home")
		}),
	}
}

func newHomesDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Stop tracking a home and drop its data",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *tracker.App) error {
			id, err := parseHomeID(args[0])
			if err != nil {
				return err
			}
			if err := app.DeleteHome(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted home %d\n", id)
			return nil
		}),
	}
}

func newHomesClearCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <id>",
		Short: "Drop a home's ingested data so the next ingest starts over",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *tracker.App) error {
			id, err := parseHomeID(args[0])
			if err != nil {
				return err
			}
			if err := app.ClearHome(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared home %d\n", id)
			return nil
		}),
	}
}

func newHomesDetectCommand(opts *rootOptions) *cobra.Command {
	var track bool
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Find Codex homes on this machine",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			found, err := app.DetectHomes(cmd.Context(), track)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), found, err)
			}
			rows := make([][]string, len(found))
			for i, f := range found {
				tracked := dimStyle.Render("no")
				if f.HomeID != nil {
					tracked = okStyle.Render(fmt.Sprintf("yes (%d)", *f.HomeID))
				}
				rows[i] = []string{f.Path, f.Origin, fmt.Sprint(f.HasSessions), tracked}
			}
			return renderTable(cmd.OutOrStdout(), []string{"Path", "Origin", "Sessions", "Tracked"}, rows, 4)
		}),
	}
	cmd.Flags().BoolVar(&track, "add", false, "track every detected home that is not tracked yet")
	return cmd
}

func parseHomeID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.InvalidInput("invalid home id %q", raw)
	}
	return id, nil
}

func printHome(cmd *cobra.Command, opts *rootOptions, home core.Home, title string) error {
	if opts.json {
		return printJSON(cmd.OutOrStdout(), home)
	}
	printTitle(cmd.OutOrStdout(), title)
	return renderTable(cmd.OutOrStdout(), []string{"ID", "Label", "Path"},
		[][]string{{fmt.Sprint(home.ID), home.Label, home.Path}}, 3)
}
