package core

import (
	"path/filepath"
	"strings"
)

const rolloutPrefix = "rollout-"

// SessionIDFromSource derives a session id from a transcript path. Codex
// names transcripts rollout-<date>-<uuid>.jsonl and the id is the segment
// after the last dash; any other source is its own session id.
func SessionIDFromSource(source string) string {
	base := filepath.Base(source)
	stem := base
	if ext := filepath.Ext(base); ext != "" && ext != base {
		stem = strings.TrimSuffix(base, ext)
	}
	if rest, ok := strings.CutPrefix(stem, rolloutPrefix); ok {
		if i := strings.LastIndex(rest, "-"); i >= 0 && i+1 < len(rest) {
			return rest[i+1:]
		}
	}
	return source
}

const DefaultEffort = "low"

// NormalizeEffort maps missing and placeholder efforts to "low".
func NormalizeEffort(effort *string) *string {
	if effort == nil {
		return StringPtr(DefaultEffort)
	}
	trimmed := strings.TrimSpace(*effort)
	if trimmed == "" {
		return StringPtr(DefaultEffort)
	}
	switch strings.ToLower(trimmed) {
	case "unknown", "unknow":
		return StringPtr(DefaultEffort)
	}
	return StringPtr(trimmed)
}
