package parsers

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

// UnknownModel is recorded when neither the line nor the file names a model.
const UnknownModel = "unknown"

// LineContext is the per-file state a line is parsed against.
type LineContext struct {
	Source    string
	SessionID string
	// Model is the last model seen earlier in the file, if any.
	Model string
	// Effort is the effort carried from the last turn_context line.
	Effort *string
}

// Line holds everything extracted from one transcript line, plus the model
// and effort to carry into the next line.
type Line struct {
	Usage   *core.UsageEvent
	Message *core.MessageEvent
	Limits  []core.UsageLimitSnapshot
	Model   string
	Effort  *string
}

var (
	modelPaths = [][]string{
		{"model"},
		{"payload", "model"},
		{"payload", "info", "model"},
		{"payload", "info", "model_name"},
		{"payload", "info", "model_id"},
	}
	effortPaths = [][]string{
		{"turn_context", "effort"},
		{"payload", "info", "effort"},
		{"payload", "effort"},
		{"effort"},
		{"usage", "effort"},
		{"usage", "reasoning_effort"},
		{"payload", "usage", "effort"},
		{"payload", "usage", "reasoning_effort"},
	}
	requestIDPaths = [][]string{
		{"request_id"},
		{"requestId"},
		{"payload", "request_id"},
		{"payload", "requestId"},
		{"payload", "info", "request_id"},
		{"payload", "info", "requestId"},
	}
	rolePaths = [][]string{
		{"role"},
		{"info", "role"},
		{"author", "role"},
		{"info", "author", "role"},
	}
)

// ParseLine extracts usage, message and rate-limit fragments from line. It
// returns false when line is not a JSON object.
func ParseLine(line string, lc LineContext) (Line, bool) {
	obj, ok := decodeObject(line)
	if !ok {
		return Line{}, false
	}

	out := Line{Model: lc.Model, Effort: lc.Effort}
	if model, ok := findString(obj, modelPaths...); ok {
		out.Model = model
	}
	if isTurnContext(obj) {
		if effort, ok := extractEffort(obj); ok {
			out.Effort = core.StringPtr(effort)
		}
	}

	out.Usage = usageEvent(obj, line, lc.Source, out.Model, lc.SessionID, out.Effort)
	out.Message = messageEvent(obj, line, lc.Source, lc.SessionID)
	out.Limits = limitSnapshots(obj, line, lc.Source)
	return out, true
}

// HashLine returns the stable event id of line within source.
func HashLine(source, line string) string {
	sum := sha256.Sum256([]byte(source + ":" + line))
	return hex.EncodeToString(sum[:])
}

func isTurnContext(obj map[string]any) bool {
	if t, ok := stringAt(obj, "payload", "type"); ok && t == "turn_context" {
		return true
	}
	t, ok := stringAt(obj, "type")
	return ok && t == "turn_context"
}

func extractEffort(obj map[string]any) (string, bool) {
	if effort, ok := findString(obj, effortPaths...); ok {
		return effort, true
	}
	if v, ok := lookup(obj, "turn_context", "effort"); ok {
		return asText(v)
	}
	return "", false
}

func usageEvent(obj map[string]any, line, source, model, sessionID string, effort *string) *core.UsageEvent {
	info, ok := tokenCountInfo(obj)
	if !ok {
		return nil
	}
	totals, ok := usageTotals(info)
	if !ok {
		return nil
	}
	ts, ok := eventTimestamp(obj)
	if !ok {
		return nil
	}

	var context core.ContextStatus
	if window, ok := uintAt(info, "model_context_window"); ok {
		context.ContextWindow = window
	}
	context.ContextUsed, _ = contextUsed(info)

	if model == "" {
		model = UnknownModel
	}
	if effort == nil {
		if e, ok := extractEffort(obj); ok {
			effort = core.StringPtr(e)
		}
	}
	var requestID *string
	if id, ok := findString(obj, requestIDPaths...); ok {
		requestID = core.StringPtr(id)
	}

	return &core.UsageEvent{
		ID:              HashLine(source, line),
		TS:              ts,
		Model:           model,
		Usage:           totals,
		Context:         context,
		ReasoningEffort: effort,
		Source:          source,
		SessionID:       sessionID,
		RequestID:       requestID,
		RawJSON:         core.StringPtr(line),
	}
}

// contextUsed prefers the last turn's total over the cumulative one.
func contextUsed(info any) (uint64, bool) {
	if last, ok := uintAt(info, "last_token_usage", "total_tokens"); ok {
		return last, true
	}
	return uintAt(info, "total_token_usage", "total_tokens")
}

func usageTotals(info any) (core.UsageTotals, bool) {
	total, ok := lookup(info, "total_token_usage")
	if !ok {
		return core.UsageTotals{}, false
	}
	input, okIn := uintAt(total, "input_tokens")
	output, okOut := uintAt(total, "output_tokens")
	sum, okSum := uintAt(total, "total_tokens")
	if !okIn || !okOut || !okSum {
		return core.UsageTotals{}, false
	}
	cached, _ := uintAt(total, "cached_input_tokens")
	reasoning, _ := uintAt(total, "reasoning_output_tokens")
	return core.UsageTotals{
		InputTokens:           input,
		CachedInputTokens:     cached,
		OutputTokens:          output,
		ReasoningOutputTokens: reasoning,
		TotalTokens:           sum,
	}, true
}

func messageEvent(obj map[string]any, line, source, sessionID string) *core.MessageEvent {
	topType, _ := stringAt(obj, "type")
	var (
		kind string
		info any = obj
	)
	if topType == "event_msg" {
		payload, ok := lookup(obj, "payload")
		if !ok {
			return nil
		}
		kind, _ = stringAt(payload, "type")
		if nested, ok := lookup(payload, "info"); ok {
			info = nested
		} else {
			info = payload
		}
	} else {
		kind = topType
	}
	if kind != "user_message" && kind != "message" {
		return nil
	}

	role, ok := findString(info, rolePaths...)
	if !ok {
		if kind != "user_message" {
			return nil
		}
		role = "user"
	}
	if !strings.EqualFold(role, "user") {
		return nil
	}

	ts, ok := eventTimestamp(obj)
	if !ok {
		if ts, ok = eventTimestamp(info); !ok {
			return nil
		}
	}
	return &core.MessageEvent{
		ID:        HashLine(source, line),
		TS:        ts,
		Role:      "user",
		Source:    source,
		SessionID: sessionID,
		RawJSON:   core.StringPtr(line),
	}
}
