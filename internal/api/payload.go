package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/callscore/internal/ingest"
	"github.com/sells-group/callscore/internal/model"
)

// transcript accepts either a plain string or a list of conversation turns.
type transcript string

type turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

func (t *transcript) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = transcript(s)
		return nil
	}

	var turns []turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return err
	}
	lines := make([]string, 0, len(turns))
	for _, tr := range turns {
		msg := strings.TrimSpace(tr.Message)
		if msg == "" {
			continue
		}
		lines = append(lines, speaker(tr.Role)+": "+msg)
	}
	*t = transcript(strings.Join(lines, "\n"))
	return nil
}

func speaker(role string) string {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case "user", "customer", "caller":
		return "Customer"
	case "":
		return "Unknown"
	default:
		// Casers carry state; one per call.
		return cases.Title(language.Und).String(r)
	}
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(vals ...flexFloat) float64 {
	for _, v := range vals {
		if v != 0 {
			return float64(v)
		}
	}
	return 0
}

// callPayload is the generic submission shape.
type callPayload struct {
	CallID          string     `json:"call_id"`
	Transcript      transcript `json:"transcript"`
	FullTranscript  transcript `json:"full_transcript"`
	AgentID         string     `json:"agent_id"`
	DurationSeconds flexFloat  `json:"duration_seconds"`
	Duration        flexFloat  `json:"duration"`
	CallType        string     `json:"call_type"`
	Source          string     `json:"source"`
	AudioRef        string     `json:"audio_ref"`
}

func (p callPayload) request(defaultSource model.Source) ingest.Request {
	source := model.Source(strings.ToLower(strings.TrimSpace(p.Source)))
	if source == "" {
		source = defaultSource
	}
	return ingest.Request{
		CallID:     p.CallID,
		Transcript: firstNonEmpty(string(p.Transcript), string(p.FullTranscript)),
		Metadata: model.CallMetadata{
			DurationSeconds: firstNonZero(p.DurationSeconds, p.Duration),
			AgentID:         p.AgentID,
			CallType:        p.CallType,
			Source:          source,
			AudioRef:        p.AudioRef,
		},
	}
}

// elevenLabsPayload accepts the flat shape and the post-call webhook
// envelope, where the conversation sits under "data".
type elevenLabsPayload struct {
	callPayload
	ConversationID string                  `json:"conversation_id"`
	Metadata       *elevenLabsMetadata     `json:"metadata"`
	Data           *elevenLabsConversation `json:"data"`
}

type elevenLabsMetadata struct {
	CallDurationSecs flexFloat `json:"call_duration_secs"`
}

type elevenLabsConversation struct {
	ConversationID string              `json:"conversation_id"`
	AgentID        string              `json:"agent_id"`
	Transcript     transcript          `json:"transcript"`
	Metadata       *elevenLabsMetadata `json:"metadata"`
}

func (p elevenLabsPayload) request() ingest.Request {
	p.Source = string(model.SourceElevenLabs)
	req := p.callPayload.request(model.SourceElevenLabs)
	req.CallID = firstNonEmpty(p.CallID, p.ConversationID)
	if p.Metadata != nil && req.Metadata.DurationSeconds == 0 {
		req.Metadata.DurationSeconds = float64(p.Metadata.CallDurationSecs)
	}

	if d := p.Data; d != nil {
		req.CallID = firstNonEmpty(req.CallID, d.ConversationID)
		req.Transcript = firstNonEmpty(req.Transcript, string(d.Transcript))
		req.Metadata.AgentID = firstNonEmpty(req.Metadata.AgentID, d.AgentID)
		if d.Metadata != nil && req.Metadata.DurationSeconds == 0 {
			req.Metadata.DurationSeconds = float64(d.Metadata.CallDurationSecs)
		}
	}
	return req
}

// xelionPayload is the Xelion PBX call-completed shape.
type xelionPayload struct {
	callPayload
	RecordingURL string `json:"recording_url"`
}

func (p xelionPayload) request() ingest.Request {
	p.Source = string(model.SourceXelion)
	req := p.callPayload.request(model.SourceXelion)
	req.Metadata.AudioRef = firstNonEmpty(p.RecordingURL, p.AudioRef)
	return req
}
