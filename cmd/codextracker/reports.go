package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/codextracker/internal/analytics"
	"github.com/janekbaraniewski/codextracker/internal/core"
	"github.com/janekbaraniewski/codextracker/internal/tracker"
)

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Total tokens and cost in a range",
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
			summary, err := app.Analytics().Summary(cmd.Context(), homeID, r)
			if err != nil {
				return err
			}
			messages, err := app.Analytics().MessageCount(cmd.Context(), homeID, r)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), struct {
					core.UsageSummary
					MessageCount uint64 `json:"message_count"`
				}{summary, messages})
			}
			out := cmd.OutOrStdout()
			printTitle(out, fmt.Sprintf("Usage %s .. %s", r.Start, r.End))
			return renderTable(out, []string{"", "Tokens", "Cost"}, [][]string{
				{"Input", formatTokens(summary.InputTokens), formatCost(summary.InputCostUSD)},
				{"Cached input", formatTokens(summary.CachedInputTokens), formatCost(summary.CachedInputCostUSD)},
				{"Output", formatTokens(summary.OutputTokens), formatCost(summary.OutputCostUSD)},
				{"Reasoning", formatTokens(summary.ReasoningOutputTokens), "-"},
				{"Total", formatTokens(summary.TotalTokens), formatCost(summary.TotalCostUSD)},
				{"Messages", fmt.Sprint(messages), ""},
			}, 1)
		}),
	}
	rf.bind(cmd)
	return cmd
}

func newBreakdownCommand(opts *rootOptions) *cobra.Command {
	var (
		rf   rangeFlags
		by   string
		view string
	)
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Usage per model or per model and reasoning effort",
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
			return runBreakdown(cmd, app.Analytics(), opts.json, homeID, r, by, view)
		}),
	}
	rf.bind(cmd)
	cmd.Flags().StringVar(&by, "by", "model", "grouping: model or effort")
	cmd.Flags().StringVar(&view, "view", "", "detail: tokens or costs (default: totals per model, tokens per effort)")
	return cmd
}

func runBreakdown(cmd *cobra.Command, engine *analytics.Engine, asJSON bool, homeID int64, r core.TimeRange, by, view string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch {
	case by == "model" && view == "":
		rows, err := engine.BreakdownByModel(ctx, homeID, r)
		if err != nil || asJSON {
			return jsonOrErr(out, rows, err)
		}
		table := make([][]string, len(rows))
		for i, b := range rows {
			table[i] = []string{b.Model, formatTokens(b.TotalTokens), formatCost(b.TotalCostUSD)}
		}
		return renderTable(out, []string{"Model", "Tokens", "Cost"}, table, 1)

	case by == "model" && view == "tokens":
		rows, err := engine.BreakdownByModelTokens(ctx, homeID, r)
		if err != nil || asJSON {
			return jsonOrErr(out, rows, err)
		}
		table := make([][]string, len(rows))
		for i, b := range rows {
			table[i] = append([]string{b.Model}, tokenColumns(b.UsageTotals)...)
		}
		return renderTable(out, append([]string{"Model"}, tokenHeaders...), table, 1)

	case by == "model" && view == "costs":
		rows, err := engine.BreakdownByModelCosts(ctx, homeID, r)
		if err != nil || asJSON {
			return jsonOrErr(out, rows, err)
		}
		table := make([][]string, len(rows))
		for i, b := range rows {
			table[i] = append([]string{b.Model, formatTokens(b.TotalTokens)}, costColumns(b.CostFields)...)
		}
		return renderTable(out, append([]string{"Model", "Tokens"}, costHeaders...), table, 1)

	case by == "effort" && (view == "" || view == "tokens"):
		rows, err := engine.BreakdownByModelEffortTokens(ctx, homeID, r)
		if err != nil || asJSON {
			return jsonOrErr(out, rows, err)
		}
		table := make([][]string, len(rows))
		for i, b := range rows {
			table[i] = append([]string{b.Model, formatOptional(b.ReasoningEffort)}, tokenColumns(b.UsageTotals)...)
		}
		return renderTable(out, append([]string{"Model", "Effort"}, tokenHeaders...), table, 2)

	case by == "effort" && view == "costs":
		rows, err := engine.BreakdownByModelEffortCosts(ctx, homeID, r)
		if err != nil || asJSON {
			return jsonOrErr(out, rows, err)
		}
		table := make([][]string, len(rows))
		for i, b := range rows {
			table[i] = append([]string{b.Model, formatOptional(b.ReasoningEffort), formatTokens(b.TotalTokens)}, costColumns(b.CostFields)...)
		}
		return renderTable(out, append([]string{"Model", "Effort", "Tokens"}, costHeaders...), table, 2)
	}
	return core.InvalidInput("unsupported breakdown --by %s --view %s", by, view)
}

func jsonOrErr(w io.Writer, v any, err error) error {
	if err != nil {
		return err
	}
	return printJSON(w, v)
}

var (
	tokenHeaders = []string{"Input", "Cached", "Output", "Reasoning", "Total"}
	costHeaders  = []string{"Input $", "Cached $", "Output $", "Total $"}
)

func tokenColumns(t core.UsageTotals) []string {
	return []string{
		formatTokens(t.InputTokens),
		formatTokens(t.CachedInputTokens),
		formatTokens(t.OutputTokens),
		formatTokens(t.ReasoningOutputTokens),
		formatTokens(t.TotalTokens),
	}
}

func costColumns(c core.CostFields) []string {
	return []string{
		formatCost(c.InputCostUSD),
		formatCost(c.CachedInputCostUSD),
		formatCost(c.OutputCostUSD),
		formatCost(c.TotalCostUSD),
	}
}

func newTimeSeriesCommand(opts *rootOptions) *cobra.Command {
	var (
		rf     rangeFlags
		bucket string
		metric string
	)
	cmd := &cobra.Command{
		Use:   "timeseries",
		Short: "Tokens or cost per hour or day",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(cmd *cobra.Command, _ []string, app *tracker.App) error {
			b, err := analytics.ParseBucket(bucket)
			if err != nil {
				return err
			}
			m, err := analytics.ParseMetric(metric)
			if err != nil {
				return err
			}
			r, err := rf.resolve()
			if err != nil {
				return err
			}
			homeID, err := activeHomeID(cmd, app)
			if err != nil {
				return err
			}
			points, err := app.Analytics().TimeSeries(cmd.Context(), homeID, r, b, m)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), points, err)
			}
			rows := make([][]string, len(points))
			for i, p := range points {
				value := formatNumber(p.Value)
				if m == analytics.MetricCost {
					value = formatUSD(p.Value)
				}
				rows[i] = []string{p.BucketStart, value}
			}
			return renderTable(cmd.OutOrStdout(), []string{"Bucket", string(m)}, rows, 1)
		}),
	}
	rf.bind(cmd)
	cmd.Flags().StringVar(&bucket, "bucket", string(analytics.BucketDay), "bucket size: hour or day")
	cmd.Flags().StringVar(&metric, "metric", string(analytics.MetricTokens), "metric: tokens or cost")
	return cmd
}

func newEventsCommand(opts *rootOptions) *cobra.Command {
	var (
		rf     rangeFlags
		model  string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List stored usage events, newest first",
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
			var modelFilter *string
			if model != "" {
				modelFilter = core.StringPtr(model)
			}
			events, err := app.Analytics().Events(cmd.Context(), homeID, r, modelFilter, limit, offset)
			if err != nil || opts.json {
				return jsonOrErr(cmd.OutOrStdout(), events, err)
			}
			rows := make([][]string, len(events))
			for i, ev := range events {
				rows[i] = []string{
					ev.TS, ev.Model, formatOptional(ev.ReasoningEffort), ev.SessionID,
					formatTokens(ev.Usage.TotalTokens), formatCost(ev.CostUSD),
				}
			}
			return renderTable(cmd.OutOrStdout(), []string{"Time", "Model", "Effort", "Session", "Cumulative", "Cost"}, rows, 4)
		}),
	}
	rf.bind(cmd)
	cmd.Flags().StringVar(&model, "model", "", "only events of this model")
	cmd.Flags().IntVar(&limit, "limit", 100, "page size (max 1000)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}
