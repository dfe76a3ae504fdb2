package analysis

import (
	"fmt"
	"strings"

	"github.com/sells-group/callscore/internal/model"
)

// systemPrompt is the fixed scoring rubric sent with every transcript.
var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(`You are a call-center quality analyst. Score the call transcript against the rubric below and respond with a single valid JSON object and nothing else.

Score each of these KPIs as an integer from 1 (very poor) to 10 (excellent):
`)
	for _, k := range model.KPIKeys {
		b.WriteString("- ")
		b.WriteString(k)
		b.WriteByte('\n')
	}
	b.WriteString(`
Also include:
- "overall_score": number, mean of the KPI scores
- "call_outcome": one of "success", "failure", "partial_success", "unknown"
- "interaction_sentiment": one of "positive", "negative", "neutral", "mixed"
- "primary_reason": short sentence explaining the outcome
- "customer_emotion_start", "customer_emotion_end": one word each
- "agent_performance_rating": integer 1-10
- "strengths", "improvements", "key_moments", "call_tags": arrays of short strings

Put every KPI at the top level of the object, keyed exactly as listed.`)
	return b.String()
}

const userPromptTemplate = `Call type: %s
Agent: %s
Duration: %.0f seconds
Source: %s

Transcript:
%s`

func buildUserPrompt(transcript string, meta model.CallMetadata, charLimit int) string {
	return fmt.Sprintf(userPromptTemplate,
		orUnknown(meta.CallType),
		orUnknown(meta.AgentID),
		meta.DurationSeconds,
		orUnknown(string(meta.Source)),
		truncateRunes(transcript, charLimit),
	)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// truncateRunes cuts s to at most n runes. n <= 0 disables the limit.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
