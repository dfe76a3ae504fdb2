package main

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callscore/internal/analysis"
	"github.com/sells-group/callscore/internal/config"
	"github.com/sells-group/callscore/internal/cost"
	"github.com/sells-group/callscore/internal/metrics"
	"github.com/sells-group/callscore/internal/model"
)

func testConfig(provider string) *config.Config {
	return &config.Config{
		Classifier: config.ClassifierConfig{
			Provider:            provider,
			TimeoutSecs:         1,
			MaxAttempts:         1,
			MaxTokens:           512,
			TranscriptCharLimit: 1000,
			BreakerThreshold:    3,
			BreakerCooldownSecs: 30,
		},
		Anthropic: config.AnthropicConfig{Key: "sk-ant-test", Model: "claude-test", BaseURL: "http://127.0.0.1:1"},
		OpenAI:    config.OpenAIConfig{Key: "sk-test", Model: "gpt-test", BaseURL: "http://127.0.0.1:1"},
		Stats:     config.StatsConfig{Timezone: "UTC"},
		Notify:    config.NotifyConfig{Buffer: 8},
		Server:    config.ServerConfig{Port: 8080},
	}
}

func TestBuildClassifier(t *testing.T) {
	c, err := buildClassifier(testConfig("none"), nil)
	require.NoError(t, err)
	assert.IsType(t, analysis.Disabled{}, c)

	c, err = buildClassifier(testConfig("Anthropic"), nil)
	require.NoError(t, err)
	assert.IsType(t, &analysis.LLMClassifier{}, c)

	c, err = buildClassifier(testConfig("openai"), nil)
	require.NoError(t, err)
	assert.IsType(t, &analysis.LLMClassifier{}, c)

	_, err = buildClassifier(testConfig("cohere"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown classifier provider")

	noKey := testConfig("openai")
	noKey.OpenAI.Key = ""
	_, err = buildClassifier(noKey, nil)
	assert.Error(t, err)
}

func TestBuildAnalyzer_DisabledObservesFailure(t *testing.T) {
	m := metrics.New(false)
	a, err := buildAnalyzer(testConfig("none"), m)
	require.NoError(t, err)

	res := a.Analyze(context.Background(), "c1", "hello", model.CallMetadata{})
	assert.Equal(t, model.OutcomeUnknown, res.CallOutcome)
	assert.Contains(t, res.PrimaryReason, "classifier disabled")
	require.NotNil(t, a.OnResult)
}

func TestUsageRecorder(t *testing.T) {
	m := metrics.New(false)
	record := usageRecorder("anthropic", m)

	record("claude-sonnet-4-5-20250929", cost.Usage{InputTokens: 1000000, OutputTokens: 100000})

	assert.InDelta(t, 4.5, testutil.ToFloat64(m.ClassifierCostUSD.WithLabelValues("anthropic")), 1e-9)
	assert.Equal(t, 1000000.0, testutil.ToFloat64(m.ClassifierTokens.WithLabelValues("anthropic", "input")))

	// A nil metrics set is tolerated.
	usageRecorder("openai", nil)("gpt-4o-mini", cost.Usage{InputTokens: 10})
}
