// Package cost prices classifier token usage.
package cost

import "strings"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Usage is the token consumption of one completion.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Cost prices u for the given provider ("anthropic" or "openai"). Unknown
// providers and models cost 0.
func (c *Calculator) Cost(provider, model string, u Usage) float64 {
	switch strings.ToLower(provider) {
	case "anthropic":
		return c.Claude(model, u)
	case "openai":
		return c.OpenAI(model, u)
	default:
		return 0
	}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, u Usage) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := perMillion(u.InputTokens) * rate.Input
	outCost := perMillion(u.OutputTokens) * rate.Output
	cwCost := perMillion(u.CacheWriteTokens) * rate.Input * rate.CacheWriteMul
	crCost := perMillion(u.CacheReadTokens) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// OpenAI computes the cost for a chat completion. Prompt caching is billed
// by the provider inside InputTokens, so only input and output are priced.
func (c *Calculator) OpenAI(model string, u Usage) float64 {
	rate, ok := c.rates.OpenAI[model]
	if !ok {
		return 0
	}
	return perMillion(u.InputTokens)*rate.Input + perMillion(u.OutputTokens)*rate.Output
}

func perMillion(tokens int64) float64 {
	return float64(tokens) / 1e6
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-6": {
				Input: 15.00, Output: 75.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"gpt-4o":      {Input: 2.50, Output: 10.00},
		},
	}
}
