package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callscore/internal/model"
	"github.com/sells-group/callscore/internal/resilience"
)

// MockCompleter implements Completer for testing.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

func testPolicy() resilience.Policy {
	return resilience.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestLLMClassifier_Classify(t *testing.T) {
	mc := new(MockCompleter)
	mc.On("Complete", mock.Anything, systemPrompt, mock.MatchedBy(func(u string) bool {
		return strings.Contains(u, "Agent: agent-9") && strings.Contains(u, "Customer: hi")
	})).Return("```json\n{\"call_outcome\":\"success\",\"listening_skills\":8}\n```", nil)

	c := NewLLMClassifier(mc, testPolicy(), 0)
	raw, err := c.Classify(context.Background(), "Customer: hi", model.CallMetadata{AgentID: "agent-9"})
	require.NoError(t, err)
	assert.Equal(t, "success", raw["call_outcome"])
	assert.Equal(t, 8.0, raw["listening_skills"])
	mc.AssertExpectations(t)
}

func TestLLMClassifier_RetriesTransient(t *testing.T) {
	mc := new(MockCompleter)
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", resilience.NewTransientError(errors.New("overloaded"), 529)).Once()
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"call_outcome":"failure"}`, nil).Once()

	raw, err := NewLLMClassifier(mc, testPolicy(), 0).Classify(context.Background(), "t", model.CallMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "failure", raw["call_outcome"])
	mc.AssertNumberOfCalls(t, "Complete", 2)
}

func TestLLMClassifier_UnparsableReply(t *testing.T) {
	mc := new(MockCompleter)
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("I refuse.", nil)

	_, err := NewLLMClassifier(mc, testPolicy(), 0).Classify(context.Background(), "t", model.CallMetadata{})
	require.Error(t, err)
	mc.AssertNumberOfCalls(t, "Complete", 1)
}

func TestSystemPrompt_ListsEveryKPI(t *testing.T) {
	for _, k := range model.KPIKeys {
		assert.Contains(t, systemPrompt, k)
	}
}

func TestBuildUserPrompt_Truncates(t *testing.T) {
	p := buildUserPrompt("héllo world", model.CallMetadata{DurationSeconds: 42, Source: model.SourceXelion}, 5)
	assert.Contains(t, p, "Transcript:\nhéllo")
	assert.NotContains(t, p, "world")
	assert.Contains(t, p, "Duration: 42 seconds")
	assert.Contains(t, p, "Call type: unknown")
	assert.Contains(t, p, "Source: xelion")
}
