package model

import "math"

// Outcome is the categorical result of a call.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeFailure        Outcome = "failure"
	OutcomePartialSuccess Outcome = "partial_success"
	OutcomeUnknown        Outcome = "unknown"
)

// Sentiment is the overall tone of the customer interaction.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// DefaultKPIScore is the neutral value used for any KPI the classifier did
// not supply.
const DefaultKPIScore = 5

// KPIKeys lists the eighteen quality metrics scored 1-10 for every call, in
// rubric order. Keys are case-sensitive.
var KPIKeys = []string{
	"call_success_rate",
	"first_call_resolution",
	"issue_identification",
	"solution_effectiveness",
	"customer_satisfaction",
	"user_interaction_sentiment",
	"customer_effort_score",
	"wait_time_satisfaction",
	"communication_clarity",
	"listening_skills",
	"empathy_emotional_intelligence",
	"product_service_knowledge",
	"call_control_flow",
	"information_gathering",
	"follow_up_commitment",
	"compliance_adherence",
	"call_handling_efficiency",
	"professionalism_courtesy",
}

// AnalysisResult is the normalized quality assessment of one call.
type AnalysisResult struct {
	KPIs                   map[string]int `json:"kpis"`
	OverallScore           float64        `json:"overall_score"`
	CallOutcome            Outcome        `json:"call_outcome"`
	InteractionSentiment   Sentiment      `json:"interaction_sentiment"`
	PrimaryReason          string         `json:"primary_reason"`
	CustomerEmotionStart   string         `json:"customer_emotion_start"`
	CustomerEmotionEnd     string         `json:"customer_emotion_end"`
	AgentPerformanceRating int            `json:"agent_performance_rating"`
	Strengths              []string       `json:"strengths"`
	Improvements           []string       `json:"improvements"`
	KeyMoments             []string       `json:"key_moments"`
	CallTags               []string       `json:"call_tags"`
}

// Clone returns a deep copy of the result.
func (a AnalysisResult) Clone() AnalysisResult {
	if a.KPIs != nil {
		kpis := make(map[string]int, len(a.KPIs))
		for k, v := range a.KPIs {
			kpis[k] = v
		}
		a.KPIs = kpis
	}
	a.Strengths = cloneStrings(a.Strengths)
	a.Improvements = cloneStrings(a.Improvements)
	a.KeyMoments = cloneStrings(a.KeyMoments)
	a.CallTags = cloneStrings(a.CallTags)
	return a
}

// MeanKPI returns the arithmetic mean of the eighteen KPI values, treating
// any missing key as DefaultKPIScore.
func (a AnalysisResult) MeanKPI() float64 {
	var sum int
	for _, k := range KPIKeys {
		v, ok := a.KPIs[k]
		if !ok {
			v = DefaultKPIScore
		}
		sum += v
	}
	return float64(sum) / float64(len(KPIKeys))
}

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
