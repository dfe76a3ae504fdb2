// Package analysis turns call transcripts into normalized quality
// assessments.
package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/callscore/internal/model"
)

const unknownEmotion = "unknown"

// Normalize builds a complete AnalysisResult from an arbitrary classifier
// payload. Missing KPIs take the neutral default; values are not clamped to
// [1,10], but values outside the int32 range are treated as missing.
// call_outcome and interaction_sentiment outside their vocabularies become
// unknown and neutral. overall_score is kept when supplied, otherwise it is the KPI mean
// rounded to one decimal.
func Normalize(raw map[string]any) model.AnalysisResult {
	if raw == nil {
		raw = map[string]any{}
	}

	nested, _ := raw["kpis"].(map[string]any)

	res := model.AnalysisResult{KPIs: make(map[string]int, len(model.KPIKeys))}
	for _, k := range model.KPIKeys {
		v, ok := nested[k]
		if !ok {
			v, ok = raw[k]
		}
		score := model.DefaultKPIScore
		if ok {
			if n, valid := toInt(v); valid {
				score = n
			}
		}
		res.KPIs[k] = score
	}

	if v, ok := toFloat(raw["overall_score"]); ok {
		res.OverallScore = v
	} else {
		res.OverallScore = model.Round(res.MeanKPI(), 1)
	}

	res.CallOutcome = outcomeOf(raw["call_outcome"])
	res.InteractionSentiment = sentimentOf(raw["interaction_sentiment"])
	res.PrimaryReason = stringOr(raw["primary_reason"], "")
	res.CustomerEmotionStart = stringOr(raw["customer_emotion_start"], unknownEmotion)
	res.CustomerEmotionEnd = stringOr(raw["customer_emotion_end"], unknownEmotion)

	res.AgentPerformanceRating = model.DefaultKPIScore
	if n, ok := toInt(raw["agent_performance_rating"]); ok {
		res.AgentPerformanceRating = n
	}

	res.Strengths = toStrings(raw["strengths"])
	res.Improvements = toStrings(raw["improvements"])
	res.KeyMoments = toStrings(raw["key_moments"])
	res.CallTags = toStrings(raw["call_tags"])
	return res
}

// Defaulted is the result substituted when no classifier payload could be
// obtained at all. cause is embedded in primary_reason.
func Defaulted(cause string) model.AnalysisResult {
	kpis := make(map[string]int, len(model.KPIKeys))
	for _, k := range model.KPIKeys {
		kpis[k] = model.DefaultKPIScore
	}
	return model.AnalysisResult{
		KPIs:                   kpis,
		OverallScore:           float64(model.DefaultKPIScore),
		CallOutcome:            model.OutcomeUnknown,
		InteractionSentiment:   model.SentimentNeutral,
		PrimaryReason:          "Analysis failed: " + cause,
		CustomerEmotionStart:   unknownEmotion,
		CustomerEmotionEnd:     unknownEmotion,
		AgentPerformanceRating: model.DefaultKPIScore,
		Strengths:              []string{"Analysis failed"},
		Improvements:           []string{"Retry analysis"},
		KeyMoments:             []string{},
		CallTags:               []string{"analysis_error"},
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	f = math.Round(f)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

func outcomeOf(v any) model.Outcome {
	switch o := model.Outcome(lowerOr(v, "")); o {
	case model.OutcomeSuccess, model.OutcomeFailure, model.OutcomePartialSuccess:
		return o
	default:
		return model.OutcomeUnknown
	}
}

func sentimentOf(v any) model.Sentiment {
	switch s := model.Sentiment(lowerOr(v, "")); s {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentMixed:
		return s
	default:
		return model.SentimentNeutral
	}
}

func stringOr(v any, def string) string {
	switch s := v.(type) {
	case nil:
		return def
	case string:
		if strings.TrimSpace(s) == "" {
			return def
		}
		return s
	default:
		return fmt.Sprint(s)
	}
}

func lowerOr(v any, def string) string {
	return strings.ToLower(strings.TrimSpace(stringOr(v, def)))
}

func toStrings(v any) []string {
	out := []string{}
	switch items := v.(type) {
	case []any:
		for _, it := range items {
			if it == nil {
				continue
			}
			if s, ok := it.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(it))
		}
	case []string:
		out = append(out, items...)
	case string:
		if strings.TrimSpace(items) != "" {
			out = append(out, items)
		}
	}
	return out
}
