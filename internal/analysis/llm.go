package analysis

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callscore/internal/cost"
	"github.com/sells-group/callscore/internal/model"
	"github.com/sells-group/callscore/internal/resilience"
	"github.com/sells-group/callscore/pkg/anthropic"
	"github.com/sells-group/callscore/pkg/openai"
)

// Completer sends one system+user prompt pair to a language model and
// returns the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLMClassifier scores transcripts by prompting a language model with the
// rubric and parsing the JSON reply.
type LLMClassifier struct {
	completer Completer
	policy    resilience.Policy
	charLimit int
}

// NewLLMClassifier creates a classifier. charLimit bounds the transcript
// length sent to the model (0 = unlimited).
func NewLLMClassifier(c Completer, policy resilience.Policy, charLimit int) *LLMClassifier {
	return &LLMClassifier{completer: c, policy: policy, charLimit: charLimit}
}

// Classify implements Classifier.
func (l *LLMClassifier) Classify(ctx context.Context, transcript string, meta model.CallMetadata) (map[string]any, error) {
	user := buildUserPrompt(transcript, meta, l.charLimit)

	text, err := resilience.Retry(ctx, l.policy, func(ctx context.Context) (string, error) {
		return l.completer.Complete(ctx, systemPrompt, user)
	})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: complete")
	}
	return parsePayload(text)
}

// AnthropicCompleter adapts an anthropic.Client.
type AnthropicCompleter struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64

	// OnUsage, if set, receives the token usage of every reply.
	OnUsage func(model string, u cost.Usage)
}

// Complete implements Completer. The rubric is sent as a cached system block.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	temp := 0.0
	resp, err := c.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		System:      []anthropic.SystemBlock{{Text: system, Cached: true}},
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogUsage(c.Model, "call_analysis")
	if c.OnUsage != nil {
		c.OnUsage(c.Model, cost.Usage{
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
		})
	}
	return resp.Text(), nil
}

// OpenAICompleter adapts an openai.Client.
type OpenAICompleter struct {
	Client    openai.Client
	Model     string
	MaxTokens int64

	OnUsage func(model string, u cost.Usage)
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	temp := 0.0
	resp, err := c.Client.CreateChatCompletion(ctx, openai.ChatRequest{
		Model:       c.Model,
		System:      system,
		User:        user,
		MaxTokens:   c.MaxTokens,
		Temperature: &temp,
		JSONObject:  true,
	})
	if err != nil {
		return "", err
	}
	if c.OnUsage != nil {
		c.OnUsage(c.Model, cost.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		})
	}
	return resp.Content, nil
}
