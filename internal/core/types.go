package core

import "time"

// TimestampLayout is the canonical stored timestamp form. Every range filter
// and pricing window compares these strings lexicographically.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in the canonical UTC millisecond form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// UsageTotals holds the five token counters reported by a transcript. Stored
// rows carry cumulative values; analytics work on deltas of them.
type UsageTotals struct {
	InputTokens           uint64 `json:"input_tokens"`
	CachedInputTokens     uint64 `json:"cached_input_tokens"`
	OutputTokens          uint64 `json:"output_tokens"`
	ReasoningOutputTokens uint64 `json:"reasoning_output_tokens"`
	TotalTokens           uint64 `json:"total_tokens"`
}

type ContextStatus struct {
	ContextUsed   uint64 `json:"context_used"`
	ContextWindow uint64 `json:"context_window"`
}

type UsageEvent struct {
	ID              string        `json:"id"`
	TS              string        `json:"ts"`
	Model           string        `json:"model"`
	Usage           UsageTotals   `json:"usage"`
	Context         ContextStatus `json:"context"`
	CostUSD         *float64      `json:"cost_usd"`
	ReasoningEffort *string       `json:"reasoning_effort"`
	Source          string        `json:"source"`
	SessionID       string        `json:"session_id"`
	RequestID       *string       `json:"request_id"`
	RawJSON         *string       `json:"raw_json,omitempty"`
}

type MessageEvent struct {
	ID        string  `json:"id"`
	TS        string  `json:"ts"`
	Role      string  `json:"role"`
	Source    string  `json:"source"`
	SessionID string  `json:"session_id"`
	RawJSON   *string `json:"raw_json,omitempty"`
}

// Limit types reported by rate-limit telemetry.
const (
	LimitType5h = "5h"
	LimitType7d = "7d"
)

type UsageLimitSnapshot struct {
	LimitType   string  `json:"limit_type"`
	PercentLeft float64 `json:"percent_left"`
	ResetAt     string  `json:"reset_at"`
	ObservedAt  string  `json:"observed_at"`
	Source      string  `json:"source"`
	RawLine     *string `json:"raw_line,omitempty"`
}

type PricingRule struct {
	ID               *int64  `json:"id"`
	ModelPattern     string  `json:"model_pattern"`
	InputPer1M       float64 `json:"input_per_1m"`
	CachedInputPer1M float64 `json:"cached_input_per_1m"`
	OutputPer1M      float64 `json:"output_per_1m"`
	EffectiveFrom    string  `json:"effective_from"`
	EffectiveTo      *string `json:"effective_to"`
}

// PricingRuleInput is a rule as supplied for replacement; the store assigns ids.
type PricingRuleInput struct {
	ModelPattern     string  `json:"model_pattern"`
	InputPer1M       float64 `json:"input_per_1m"`
	CachedInputPer1M float64 `json:"cached_input_per_1m"`
	OutputPer1M      float64 `json:"output_per_1m"`
	EffectiveFrom    string  `json:"effective_from"`
	EffectiveTo      *string `json:"effective_to"`
}

func (r PricingRule) Input() PricingRuleInput {
	return PricingRuleInput{
		ModelPattern:     r.ModelPattern,
		InputPer1M:       r.InputPer1M,
		CachedInputPer1M: r.CachedInputPer1M,
		OutputPer1M:      r.OutputPer1M,
		EffectiveFrom:    r.EffectiveFrom,
		EffectiveTo:      r.EffectiveTo,
	}
}

type CostBreakdown struct {
	InputCostUSD       float64 `json:"input_cost_usd"`
	CachedInputCostUSD float64 `json:"cached_input_cost_usd"`
	OutputCostUSD      float64 `json:"output_cost_usd"`
	TotalCostUSD       float64 `json:"total_cost_usd"`
}

func (c CostBreakdown) Add(o CostBreakdown) CostBreakdown {
	return CostBreakdown{
		InputCostUSD:       c.InputCostUSD + o.InputCostUSD,
		CachedInputCostUSD: c.CachedInputCostUSD + o.CachedInputCostUSD,
		OutputCostUSD:      c.OutputCostUSD + o.OutputCostUSD,
		TotalCostUSD:       c.TotalCostUSD + o.TotalCostUSD,
	}
}

// Home is one tracked Codex installation root.
type Home struct {
	ID         int64   `json:"id"`
	Label      string  `json:"label"`
	Path       string  `json:"path"`
	CreatedAt  string  `json:"created_at"`
	LastSeenAt *string `json:"last_seen_at"`
}

type HomeCounts struct {
	UsageEvents   int64 `json:"usage_events"`
	MessageEvents int64 `json:"message_events"`
	IngestCursors int64 `json:"ingest_cursors"`
}

type UsageSummary struct {
	TotalTokens           uint64   `json:"total_tokens"`
	InputTokens           uint64   `json:"input_tokens"`
	CachedInputTokens     uint64   `json:"cached_input_tokens"`
	OutputTokens          uint64   `json:"output_tokens"`
	ReasoningOutputTokens uint64   `json:"reasoning_output_tokens"`
	TotalCostUSD          *float64 `json:"total_cost_usd"`
	InputCostUSD          *float64 `json:"input_cost_usd"`
	CachedInputCostUSD    *float64 `json:"cached_input_cost_usd"`
	OutputCostUSD         *float64 `json:"output_cost_usd"`
}

type ModelBreakdown struct {
	Model        string   `json:"model"`
	TotalTokens  uint64   `json:"total_tokens"`
	TotalCostUSD *float64 `json:"total_cost_usd"`
}

type ModelTokenBreakdown struct {
	Model string `json:"model"`
	UsageTotals
}

type ModelEffortTokenBreakdown struct {
	Model           string  `json:"model"`
	ReasoningEffort *string `json:"reasoning_effort"`
	UsageTotals
}

// CostFields are present only when at least one pricing rule applied.
type CostFields struct {
	InputCostUSD       *float64 `json:"input_cost_usd"`
	CachedInputCostUSD *float64 `json:"cached_input_cost_usd"`
	OutputCostUSD      *float64 `json:"output_cost_usd"`
	TotalCostUSD       *float64 `json:"total_cost_usd"`
}

// KnownCost returns c as populated cost fields when known, nil fields otherwise.
func KnownCost(c CostBreakdown, known bool) CostFields {
	if !known {
		return CostFields{}
	}
	return CostFields{
		InputCostUSD:       Float64Ptr(c.InputCostUSD),
		CachedInputCostUSD: Float64Ptr(c.CachedInputCostUSD),
		OutputCostUSD:      Float64Ptr(c.OutputCostUSD),
		TotalCostUSD:       Float64Ptr(c.TotalCostUSD),
	}
}

type ModelCostBreakdown struct {
	Model string `json:"model"`
	UsageTotals
	CostFields
}

type ModelEffortCostBreakdown struct {
	Model           string  `json:"model"`
	ReasoningEffort *string `json:"reasoning_effort"`
	UsageTotals
	CostFields
}

type TimeSeriesPoint struct {
	BucketStart string  `json:"bucket_start"`
	Value       float64 `json:"value"`
}

type ContextPressureStats struct {
	AvgContextUsed   *float64 `json:"avg_context_used"`
	AvgContextWindow *float64 `json:"avg_context_window"`
	AvgPressurePct   *float64 `json:"avg_pressure_pct"`
	SampleCount      uint64   `json:"sample_count"`
}

// ContextSnapshot is the context occupancy reported by the newest event.
type ContextSnapshot struct {
	TS        string `json:"ts"`
	Model     string `json:"model"`
	SessionID string `json:"session_id"`
	ContextStatus
}

type ActiveSession struct {
	SessionID     string `json:"session_id"`
	Model         string `json:"model"`
	LastSeen      string `json:"last_seen"`
	SessionStart  string `json:"session_start"`
	ContextUsed   uint64 `json:"context_used"`
	ContextWindow uint64 `json:"context_window"`
}

type UsageLimitWindow struct {
	WindowStart  *string  `json:"window_start"`
	WindowEnd    string   `json:"window_end"`
	TotalTokens  *uint64  `json:"total_tokens"`
	TotalCostUSD *float64 `json:"total_cost_usd"`
	MessageCount *uint64  `json:"message_count"`
	Complete     bool     `json:"complete"`
}

type UsageLimitCurrentWindow struct {
	WindowStart  string   `json:"window_start"`
	WindowEnd    string   `json:"window_end"`
	TotalTokens  *uint64  `json:"total_tokens"`
	TotalCostUSD *float64 `json:"total_cost_usd"`
	MessageCount *uint64  `json:"message_count"`
}

type UsageLimitCurrentResponse struct {
	Primary   *UsageLimitCurrentWindow `json:"primary"`
	Secondary *UsageLimitCurrentWindow `json:"secondary"`
}

type UsageLimitLatest struct {
	Primary   *UsageLimitSnapshot `json:"primary"`
	Secondary *UsageLimitSnapshot `json:"secondary"`
}

type IngestIssue struct {
	FilePath string `json:"file_path"`
	Message  string `json:"message"`
}

type IngestStats struct {
	FilesScanned   int           `json:"files_scanned"`
	FilesSkipped   int           `json:"files_skipped"`
	EventsInserted int           `json:"events_inserted"`
	BytesRead      uint64        `json:"bytes_read"`
	Issues         []IngestIssue `json:"issues"`
}

func Float64Ptr(v float64) *float64 { return &v }

func Uint64Ptr(v uint64) *uint64 { return &v }

func StringPtr(v string) *string { return &v }
