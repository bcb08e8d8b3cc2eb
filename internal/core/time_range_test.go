package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRange_Presets(t *testing.T) {
	now := time.Date(2026, time.March, 15, 13, 45, 30, 0, time.UTC)
	tests := []struct {
		preset string
		start  string
	}{
		{"", "2026-03-08T13:45:30.000Z"},
		{"today", "2026-03-15T00:00:00.000Z"},
		{"last7days", "2026-03-08T13:45:30.000Z"},
		{"last14days", "2026-03-01T13:45:30.000Z"},
		{"thismonth", "2026-03-01T00:00:00.000Z"},
		{"alltime", "1970-01-01T00:00:00.000Z"},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			got, err := ResolveRange(RangeParams{Range: tt.preset}, now)
			require.NoError(t, err)
			assert.Equal(t, tt.start, got.Start)
			assert.Equal(t, "2026-03-15T13:45:30.000Z", got.End)
		})
	}
}

func TestResolveRange_LocalPresetConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, time.March, 15, 1, 0, 0, 0, loc)

	got, err := ResolveRange(RangeParams{Range: "today"}, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14T22:00:00.000Z", got.Start)
	assert.Equal(t, "2026-03-14T23:00:00.000Z", got.End)
}

func TestResolveRange_ExplicitBounds(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	got, err := ResolveRange(RangeParams{Start: "2026-03-01T10:00:00+02:00", End: "2026-03-02T00:00:00Z"}, now)
	require.NoError(t, err)
	assert.Equal(t, TimeRange{Start: "2026-03-01T08:00:00.000Z", End: "2026-03-02T00:00:00.000Z"}, got)

	got, err = ResolveRange(RangeParams{Start: "2026-03-01T00:00:00Z"}, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15T12:00:00.000Z", got.End)
}

func TestResolveRange_Errors(t *testing.T) {
	now := time.Now()

	_, err := ResolveRange(RangeParams{Range: "fortnight"}, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "unsupported range fortnight", err.Error())

	_, err = ResolveRange(RangeParams{Start: "yesterday"}, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
