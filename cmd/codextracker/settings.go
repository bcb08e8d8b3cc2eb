package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/config"
	"github.com/janekbaraniewski/codextracker/internal/settings"
	"github.com/janekbaraniewski/codextracker/internal/tracker"
)

func newSettingsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored settings",
	}
	cmd.AddCommand(newSettingsGetCommand(opts), newSettingsSetCommand(opts))
	return cmd
}

func newSettingsGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show stored settings",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			snap, err := app.Settings().Get(cmd.Context())
			if err != nil {
				return err
			}
			return printSettings(cmd, opts, snap)
		}),
	}
}

func newSettingsSetCommand(opts *rootOptions) *cobra.Command {
	var (
		codexHome string
		minutes   int
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the active codex home or the active-session window",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			var (
				homeArg    *string
				minutesArg *int
			)
			if cmd.Flags().Changed("codex-home") {
				homeArg = &codexHome
			}
			if cmd.Flags().Changed("context-minutes") {
				minutesArg = &minutes
			}
			snap, err := app.Settings().Update(cmd.Context(), homeArg, minutesArg)
			if err != nil {
				return err
			}
			return printSettings(cmd, opts, snap)
		}),
	}
	cmd.Flags().StringVar(&codexHome, "codex-home", "", "codex home path to track and activate")
	cmd.Flags().IntVar(&minutes, "context-minutes", 0, "minutes a session counts as active")
	return cmd
}

func printSettings(cmd *cobra.Command, opts *rootOptions, snap settings.Snapshot) error {
	if opts.json {
		return printJSON(cmd.OutOrStdout(), snap)
	}
	return renderTable(cmd.OutOrStdout(), []string{"Setting", "Value"}, [][]string{
		{"codex_home", snap.CodexHome},
		{"active_home_id", fmt.Sprint(snap.ActiveHomeID)},
		{"context_active_minutes", fmt.Sprint(snap.ContextActiveMinutes)},
	}, 2)
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			printTitle(cmd.OutOrStdout(), opts.configPath)
			return renderTable(cmd.OutOrStdout(), []string{"Key", "Value"}, [][]string{
				{"data_dir", cfg.DataDir},
				{"db_path", cfg.DBPath},
				{"pricing_path", cfg.PricingPath},
				{"codex_home", cfg.CodexHome},
				{"ingest.workers", fmt.Sprint(cfg.Ingest.Workers)},
				{"watch.debounce", cfg.Watch.Debounce.String()},
				{"watch.min_interval", cfg.Watch.MinInterval.String()},
			}, 2)
		},
	}, &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := config.SaveTo(opts.configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.configPath)
			return nil
		},
	})
	return cmd
}
