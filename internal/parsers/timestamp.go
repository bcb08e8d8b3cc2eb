package parsers

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

var naiveTimestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeTimestamp converts a transcript timestamp into the canonical UTC
// millisecond form. Naive timestamps are taken as UTC; all-digit values are
// epoch seconds, or milliseconds when longer than ten digits.
func NormalizeTimestamp(raw string) (string, bool) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return formatChecked(t)
	}
	for _, layout := range naiveTimestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return formatChecked(t)
		}
	}
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return "", false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", false
	}
	if len(raw) > 10 {
		return formatChecked(time.UnixMilli(v))
	}
	return formatChecked(time.Unix(v, 0))
}

func eventTimestamp(v any) (string, bool) {
	raw, ok := findString(v, []string{"timestamp"}, []string{"ts"}, []string{"time"})
	if !ok {
		return "", false
	}
	return NormalizeTimestamp(raw)
}

var resetDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

var resetClockLayouts = []string{
	"15:04:05",
	"15:04",
}

// parseResetAt interprets a rate-limit reset value. Bare clock times are
// placed on the reference day and rolled to the next day unless strictly
// after the reference. Results are truncated to the minute.
func parseResetAt(raw any, reference string) (string, bool) {
	ref, err := time.Parse(time.RFC3339Nano, reference)
	if err != nil {
		return "", false
	}
	ref = ref.UTC()

	if s, ok := raw.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return formatChecked(truncateMinute(t))
		}
		for _, layout := range resetDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return formatChecked(truncateMinute(t))
			}
		}
		for _, layout := range resetClockLayouts {
			clock, err := time.Parse(layout, s)
			if err != nil {
				continue
			}
			t := time.Date(ref.Year(), ref.Month(), ref.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
			if !t.After(ref) {
				t = t.AddDate(0, 0, 1)
			}
			return formatChecked(truncateMinute(t))
		}
		return "", false
	}

	n, ok := raw.(json.Number)
	if !ok {
		return "", false
	}
	v, ok := asFloat(n)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	if v > 1e12 {
		v /= 1000
	}
	secs := math.Trunc(v)
	if secs > math.MaxInt64/2 || secs < math.MinInt64/2 {
		return "", false
	}
	t := time.Unix(int64(secs), int64((v-secs)*1e9))
	return formatChecked(truncateMinute(t))
}

func truncateMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// formatChecked rejects instants the canonical layout cannot represent.
func formatChecked(t time.Time) (string, bool) {
	if y := t.UTC().Year(); y < 0 || y > 9999 {
		return "", false
	}
	return core.FormatTimestamp(t), true
}
