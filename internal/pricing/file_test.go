package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janekbaraniewski/codextracker/internal/core"
)

func TestLoadFile_Missing(t *testing.T) {
	rules, found, err := LoadFile(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rules)
}

func TestSaveFileLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	in := []core.PricingRuleInput{{
		ModelPattern:     "gpt-5*",
		InputPer1M:       1.25,
		CachedInputPer1M: 0.125,
		OutputPer1M:      10,
		EffectiveFrom:    "2025-08-07T00:00:00.000Z",
		EffectiveTo:      core.StringPtr("2026-01-01T00:00:00.000Z"),
	}}
	require.NoError(t, SaveFile(path, in))

	out, found, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, found, err := LoadFile(path)
	assert.True(t, found)
	assert.Error(t, err)
}
