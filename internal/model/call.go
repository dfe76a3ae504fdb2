package model

import "time"

// Source identifies the telephony platform that delivered a call.
type Source string

const (
	SourceElevenLabs Source = "elevenlabs"
	SourceXelion     Source = "xelion"
	SourceManual     Source = "manual"
)

// CallMetadata carries the caller-supplied facts about a call.
type CallMetadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	AgentID         string  `json:"agent_id"`
	CallType        string  `json:"call_type"`
	Source          Source  `json:"source"`
	AudioRef        string  `json:"audio_ref,omitempty"` // stored recording, if any
}

// CallRecord is the stored unit for one completed call. Records are built
// once at ingestion and never mutated afterwards.
type CallRecord struct {
	CallID     string         `json:"call_id"`
	Transcript string         `json:"transcript"`
	Metadata   CallMetadata   `json:"metadata"`
	Analysis   AnalysisResult `json:"analysis"`
	Timestamp  time.Time      `json:"timestamp"`
	Source     Source         `json:"source"`
}

// Clone returns a deep copy so callers outside the store cannot alias its
// slices and maps.
func (r CallRecord) Clone() CallRecord {
	r.Analysis = r.Analysis.Clone()
	return r
}
