package analysis

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// extractJSON strips markdown code fences and surrounding prose, leaving the
// outermost JSON object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// parsePayload decodes a model reply into a raw payload map.
func parsePayload(text string) (map[string]any, error) {
	cleaned := extractJSON(text)
	if cleaned == "" {
		return nil, eris.New("analysis: empty classifier reply")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, eris.Wrap(err, "analysis: parse classifier reply")
	}
	if raw == nil {
		return nil, eris.New("analysis: classifier reply is not an object")
	}
	return raw, nil
}
