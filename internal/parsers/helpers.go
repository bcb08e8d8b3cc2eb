package parsers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// decodeObject parses line into a generic JSON object. Numbers stay
// json.Number so 64-bit counters survive intact.
func decodeObject(line string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return obj, true
}

// lookup walks nested objects along path.
func lookup(v any, path ...string) (any, bool) {
	cur := v
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := obj[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// findString returns the first path that resolves to a JSON string.
func findString(v any, paths ...[]string) (string, bool) {
	for _, path := range paths {
		found, ok := lookup(v, path...)
		if !ok {
			continue
		}
		if s, ok := found.(string); ok {
			return s, true
		}
	}
	return "", false
}

func stringAt(v any, path ...string) (string, bool) {
	found, ok := lookup(v, path...)
	if !ok {
		return "", false
	}
	s, ok := found.(string)
	return s, ok
}

// asUint64 accepts only non-negative integral JSON numbers.
func asUint64(v any) (uint64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	u, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return u, true
}

func uintAt(v any, path ...string) (uint64, bool) {
	found, ok := lookup(v, path...)
	if !ok {
		return 0, false
	}
	return asUint64(found)
}

// asFloat accepts JSON numbers and numeric strings.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asText accepts strings and integral numbers.
func asText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10), true
		}
	}
	return "", false
}
