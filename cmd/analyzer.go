package main

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callscore/internal/analysis"
	"github.com/sells-group/callscore/internal/config"
	"github.com/sells-group/callscore/internal/cost"
	"github.com/sells-group/callscore/internal/metrics"
	"github.com/sells-group/callscore/internal/resilience"
	anthropicpkg "github.com/sells-group/callscore/pkg/anthropic"
	openaipkg "github.com/sells-group/callscore/pkg/openai"
)

// buildClassifier selects the classifier named by classifier.provider. m may
// be nil.
func buildClassifier(c *config.Config, m *metrics.Metrics) (analysis.Classifier, error) {
	policy := resilience.DefaultPolicy()
	if c.Classifier.MaxAttempts > 0 {
		policy.Attempts = c.Classifier.MaxAttempts
	}

	switch provider := strings.ToLower(c.Classifier.Provider); provider {
	case "none":
		return analysis.Disabled{}, nil
	case "anthropic":
		policy.OnRetry = resilience.LogRetry("anthropic")
		var opts []anthropicpkg.Option
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
		}
		completer := &analysis.AnthropicCompleter{
			Client:    anthropicpkg.NewClient(c.Anthropic.Key, opts...),
			Model:     c.Anthropic.Model,
			MaxTokens: c.Classifier.MaxTokens,
			OnUsage:   usageRecorder(provider, m),
		}
		return analysis.NewLLMClassifier(completer, policy, c.Classifier.TranscriptCharLimit), nil
	case "openai":
		policy.OnRetry = resilience.LogRetry("openai")
		var opts []openaipkg.Option
		if c.OpenAI.BaseURL != "" {
			opts = append(opts, openaipkg.WithBaseURL(c.OpenAI.BaseURL))
		}
		client, err := openaipkg.NewClient(c.OpenAI.Key, opts...)
		if err != nil {
			return nil, eris.Wrap(err, "build openai client")
		}
		completer := &analysis.OpenAICompleter{
			Client:    client,
			Model:     c.OpenAI.Model,
			MaxTokens: c.Classifier.MaxTokens,
			OnUsage:   usageRecorder(provider, m),
		}
		return analysis.NewLLMClassifier(completer, policy, c.Classifier.TranscriptCharLimit), nil
	default:
		return nil, eris.Errorf("unknown classifier provider %q", provider)
	}
}

// buildAnalyzer wraps the configured classifier with the timeout and
// breaker. m may be nil.
func buildAnalyzer(c *config.Config, m *metrics.Metrics) (*analysis.Analyzer, error) {
	classifier, err := buildClassifier(c, m)
	if err != nil {
		return nil, err
	}

	var breaker *resilience.Breaker
	if c.Classifier.BreakerThreshold > 0 {
		breaker = resilience.NewBreaker(c.Classifier.BreakerThreshold,
			time.Duration(c.Classifier.BreakerCooldownSecs)*time.Second)
	}

	a := analysis.NewAnalyzer(classifier, c.Classifier.Timeout(), breaker)
	if m != nil {
		a.OnResult = m.ObserveClassifier
	}
	return a, nil
}

// usageRecorder prices each completion and feeds the token and cost
// counters.
func usageRecorder(provider string, m *metrics.Metrics) func(string, cost.Usage) {
	calc := cost.NewCalculator(cost.DefaultRates())
	return func(model string, u cost.Usage) {
		usd := calc.Cost(provider, model, u)
		if m != nil {
			m.ObserveUsage(provider, u, usd)
		}
		zap.L().Debug("classifier cost",
			zap.String("provider", provider),
			zap.String("model", model),
			zap.Float64("usd", usd),
		)
	}
}
