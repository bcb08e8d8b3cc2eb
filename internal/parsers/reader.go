package parsers

import (
	"bufio"
	"fmt"
	"io"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

const maxLineSize = 16 << 20

// UsageEventsFromReader parses a whole transcript and returns its usage
// events in file order, carrying model and effort across lines.
func UsageEventsFromReader(r io.Reader, source string) ([]core.UsageEvent, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lc := LineContext{Source: source, SessionID: core.SessionIDFromSource(source)}
	var events []core.UsageEvent
	for scanner.Scan() {
		line, ok := ParseLine(scanner.Text(), lc)
		if !ok {
			continue
		}
		lc.Model, lc.Effort = line.Model, line.Effort
		if line.Usage != nil {
			events = append(events, *line.Usage)
		}
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("parsers: reading %s: %w", source, err)
	}
	return events, nil
}

// UsageTotalsFromLine returns the cumulative counters of a token_count line.
func UsageTotalsFromLine(line string) (core.UsageTotals, bool) {
	info, ok := tokenCountInfoFromLine(line)
	if !ok {
		return core.UsageTotals{}, false
	}
	return usageTotals(info)
}

// TokenTotalsFromLine returns the cumulative total_tokens of a token_count
// line. The other counters may be absent.
func TokenTotalsFromLine(line string) (uint64, bool) {
	info, ok := tokenCountInfoFromLine(line)
	if !ok {
		return 0, false
	}
	return uintAt(info, "total_token_usage", "total_tokens")
}

// ContextFromLine returns the context occupancy reported by a token_count
// line. Lines without model_context_window report nothing.
func ContextFromLine(line string) (core.ContextStatus, bool) {
	info, ok := tokenCountInfoFromLine(line)
	if !ok {
		return core.ContextStatus{}, false
	}
	used, ok := contextUsed(info)
	if !ok {
		return core.ContextStatus{}, false
	}
	window, ok := uintAt(info, "model_context_window")
	if !ok {
		return core.ContextStatus{}, false
	}
	return core.ContextStatus{ContextUsed: used, ContextWindow: window}, true
}

func tokenCountInfoFromLine(line string) (any, bool) {
	obj, ok := decodeObject(line)
	if !ok {
		return nil, false
	}
	return tokenCountInfo(obj)
}

func tokenCountInfo(obj map[string]any) (any, bool) {
	if t, _ := stringAt(obj, "type"); t != "event_msg" {
		return nil, false
	}
	if t, _ := stringAt(obj, "payload", "type"); t != "token_count" {
		return nil, false
	}
	info, ok := lookup(obj, "payload", "info")
	if !ok || info == nil {
		return nil, false
	}
	return info, true
}
