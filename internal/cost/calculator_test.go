package cost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_Claude(t *testing.T) {
	c := NewCalculator(DefaultRates())

	// 1M input + 1M output at sonnet pricing.
	got := c.Claude("claude-sonnet-4-5-20250929", 1_000_000, 1_000_000)
	assert.InDelta(t, 18.00, got, 1e-9)

	// Small call.
	got = c.Claude("claude-haiku-4-5-20251001", 1000, 500)
	assert.InDelta(t, 0.0008+0.002, got, 1e-9)

	// Unknown model costs nothing.
	assert.Zero(t, c.Claude("not-a-model", 1000, 1000))
}

func TestCalculator_EmailCheck(t *testing.T) {
	c := NewCalculator(DefaultRates())
	assert.Equal(t, 0.004, c.EmailCheck())
}

func TestLoadRates_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	content := []byte("zerobounce:\n  per_check: 0.007\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	rates, err := LoadRates(path)
	require.NoError(t, err)
	assert.Equal(t, 0.007, rates.ZeroBounce.PerCheck)
	// Anthropic section untouched, defaults remain.
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-5-20250929")
}

func TestLoadRates_MissingFile(t *testing.T) {
	_, err := LoadRates(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
