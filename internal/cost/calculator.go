// Package cost converts API usage into USD amounts for the economics ledger.
package cost

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic"`
	ZeroBounce ZeroBounceRate       `yaml:"zerobounce"`
}

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// ZeroBounceRate holds the flat per-credit validation cost.
type ZeroBounceRate struct {
	PerCheck float64 `yaml:"per_check"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of a Claude API call. Unknown models cost 0.
func (c *Calculator) Claude(model string, input, output int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// EmailCheck returns the flat cost of one deliverability check.
func (c *Calculator) EmailCheck() float64 {
	return c.rates.ZeroBounce.PerCheck
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-1-20250805":   {Input: 15.00, Output: 75.00},
		},
		ZeroBounce: ZeroBounceRate{PerCheck: 0.004},
	}
}

// LoadRates reads a rates file, filling any missing sections from defaults.
func LoadRates(path string) (Rates, error) {
	rates := DefaultRates()

	data, err := os.ReadFile(path)
	if err != nil {
		return rates, eris.Wrapf(err, "cost: read rates file %s", path)
	}
	if err := yaml.Unmarshal(data, &rates); err != nil {
		return rates, eris.Wrapf(err, "cost: parse rates file %s", path)
	}
	return rates, nil
}
