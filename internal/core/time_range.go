package core

import (
	"strings"
	"time"
)

// TimeRange is a half-open [Start, End) interval of canonical timestamps.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RangePreset names a range resolved against the local clock.
type RangePreset string

const (
	RangeToday      RangePreset = "today"
	RangeLast7Days  RangePreset = "last7days"
	RangeLast14Days RangePreset = "last14days"
	RangeThisMonth  RangePreset = "thismonth"
	RangeAllTime    RangePreset = "alltime"

	DefaultRangePreset = RangeLast7Days
)

var ValidRangePresets = []RangePreset{
	RangeToday,
	RangeLast7Days,
	RangeLast14Days,
	RangeThisMonth,
	RangeAllTime,
}

func (p RangePreset) Label() string {
	switch p {
	case RangeToday:
		return "Today"
	case RangeLast7Days:
		return "Last 7 Days"
	case RangeLast14Days:
		return "Last 14 Days"
	case RangeThisMonth:
		return "This Month"
	case RangeAllTime:
		return "All Time"
	default:
		return string(p)
	}
}

// RangeParams is the shell-facing description of a range: either explicit
// bounds or a preset name.
type RangeParams struct {
	Range string `json:"range,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// ResolveRange turns params into a canonical UTC range. Presets are computed
// in now's location.
func ResolveRange(params RangeParams, now time.Time) (TimeRange, error) {
	start := strings.TrimSpace(params.Start)
	end := strings.TrimSpace(params.End)
	if start != "" {
		s, err := NormalizeRFC3339(start)
		if err != nil {
			return TimeRange{}, err
		}
		e := FormatTimestamp(now)
		if end != "" {
			if e, err = NormalizeRFC3339(end); err != nil {
				return TimeRange{}, err
			}
		}
		return TimeRange{Start: s, End: e}, nil
	}

	preset := RangePreset(strings.TrimSpace(params.Range))
	if preset == "" {
		preset = DefaultRangePreset
	}
	loc := now.Location()
	var from time.Time
	switch preset {
	case RangeToday:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	case RangeLast7Days:
		from = now.Add(-7 * 24 * time.Hour)
	case RangeLast14Days:
		from = now.Add(-14 * 24 * time.Hour)
	case RangeThisMonth:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	case RangeAllTime:
		from = time.Date(1970, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return TimeRange{}, InvalidInput("unsupported range %s", preset)
	}
	return TimeRange{Start: FormatTimestamp(from), End: FormatTimestamp(now)}, nil
}

// NormalizeRFC3339 parses value as RFC3339 and returns the canonical form.
func NormalizeRFC3339(value string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return "", InvalidInput("invalid datetime: %v", err)
	}
	return FormatTimestamp(t), nil
}
