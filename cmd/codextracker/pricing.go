package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/pricing"
	"github.com/janekbaraniewski/codextracker/internal/tracker"
)

func newPricingCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Inspect and replace pricing rules",
	}
	cmd.AddCommand(
		newPricingListCommand(opts),
		newPricingReplaceCommand(opts),
		newPricingRecomputeCommand(opts),
	)
	return cmd
}

func newPricingListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pricing rules, newest first",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			rules, err := app.ListPricing(cmd.Context())
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), rules, err)
			}
			return printRules(cmd, rules)
		}),
	}
}

func newPricingReplaceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replace <file.json>",
		Short: "Replace every pricing rule with the rules in a JSON file",
		Long:  "Reads a JSON array of rules (model_pattern, input_per_1m, cached_input_per_1m, output_per_1m, effective_from, effective_to) and swaps the whole rule set. Run `pricing recompute` to reprice stored events.",
		Args:  cobra.ExactArgs(1),
		RunE: opts.withApp(func(cmd *cobra.Command, args []string, app *tracker.App) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading rules: %w", err)
			}
			var inputs []core.PricingRuleInput
			if err := json.Unmarshal(data, &inputs); err != nil {
				return core.InvalidInput("parsing rules %s: %v", args[0], err)
			}
			rules, err := app.ReplacePricing(cmd.Context(), inputs)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), rules, err)
			}
			return printRules(cmd, rules)
		}),
	}
}

func newPricingRecomputeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Reprice stored events of the active home with the current rules",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			n, err := app.RecomputeCosts(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), map[string]int{"updated": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "repriced %d events\n", n)
			return nil
		}),
	}
}

func printRules(cmd *cobra.Command, rules pricing.Rules) error {
	rows := make([][]string, len(rules))
	for i, r := range rules {
		rows[i] = []string{r.ModelPattern, r.EffectiveFrom, formatOptional(r.EffectiveTo),
			formatUSD(r.InputPer1M), formatUSD(r.CachedInputPer1M), formatUSD(r.OutputPer1M)}
	}
	return renderTable(cmd.OutOrStdout(),
		[]string{"Pattern", "From", "To", "Input/1M", "Cached/1M", "Output/1M"}, rows, 3)
}
