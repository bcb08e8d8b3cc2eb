package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/config"
	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/tracker"
	"github.com/janekbaraniewski/codextracker/internal/version"
)

func main() {
	if os.Getenv("CODEX_TRACKER_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes bad input and missing records from other failures.
func exitCode(err error) int {
	switch core.KindOf(err) {
	case core.KindInvalidInput:
		return 2
	case core.KindNotFound:
		return 3
	default:
		return 1
	}
}

type rootOptions struct {
	configPath string
	json       bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "codextracker",
		Short:         "Track token usage and spend of local Codex sessions.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.ConfigPath(), "path to the config file")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON instead of tables")

	root.AddCommand(
		newIngestCommand(opts),
		newWatchCommand(opts),
		newSummaryCommand(opts),
		newBreakdownCommand(opts),
		newTimeSeriesCommand(opts),
		newContextCommand(opts),
		newEventsCommand(opts),
		newLimitsCommand(opts),
		newHomesCommand(opts),
		newPricingCommand(opts),
		newSettingsCommand(opts),
		newConfigCommand(opts),
		newDBCommand(opts),
		newVersionCommand(),
	)
	return root
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("loading config %s: %w", o.configPath, err)
	}
	return cfg, nil
}

type appRunner func(cmd *cobra.Command, args []string, app *tracker.App) error

// withApp opens the tracker for the duration of one command.
func (o *rootOptions) withApp(fn appRunner) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := o.loadConfig()
		if err != nil {
			return err
		}
		app, err := tracker.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(cmd, args, app)
	}
}

// activeHomeID resolves the active home once per command.
func activeHomeID(cmd *cobra.Command, app *tracker.App) (int64, error) {
	home, err := app.ActiveHome(cmd.Context())
	if err != nil {
		return 0, err
	}
	return home.ID, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "codextracker "+version.String())
		},
	}
}
