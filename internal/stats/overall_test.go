package stats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callscore/internal/model"
)

func analysisWith(outcome model.Outcome, sentiment model.Sentiment, kpi int, overall float64) model.AnalysisResult {
	kpis := make(map[string]int, len(model.KPIKeys))
	for _, k := range model.KPIKeys {
		kpis[k] = kpi
	}
	return model.AnalysisResult{
		KPIs:                 kpis,
		OverallScore:         overall,
		CallOutcome:          outcome,
		InteractionSentiment: sentiment,
	}
}

func TestOverall_ApplyDoesNotMutateReceiver(t *testing.T) {
	prev := NewOverall()
	next := prev.Apply(analysisWith(model.OutcomeSuccess, model.SentimentPositive, 8, 8), 60)

	assert.Equal(t, 0, prev.TotalCalls)
	assert.Empty(t, prev.KPIAverages)
	assert.Equal(t, 1, next.TotalCalls)
	assert.InDelta(t, 8.0, next.KPIAverages["listening_skills"], 1e-9)
}

func TestOverall_ZeroValueApply(t *testing.T) {
	var o Overall
	o = o.Apply(analysisWith(model.OutcomeFailure, model.SentimentNegative, 3, 3), 10)
	assert.Equal(t, 1, o.FailedCalls)
	assert.InDelta(t, 3.0, o.KPIAverages["call_success_rate"], 1e-9)
}

func TestOverall_DurationIdentity(t *testing.T) {
	o := NewOverall()
	durations := []float64{12.5, 0, 301.25, 47, 1e-3, 999.9}
	for _, d := range durations {
		o = o.Apply(analysisWith(model.OutcomeSuccess, model.SentimentNeutral, 5, 5), d)
		assert.InDelta(t, o.TotalCallDuration/float64(o.TotalCalls), o.AverageCallDuration, 1e-9)
	}
	assert.InDelta(t, 1360.651, o.TotalCallDuration, 1e-9)
}

func TestOverall_OutcomeCounters(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []model.Outcome
		equal    bool
	}{
		{"binary only", []model.Outcome{"success", "failure", "success"}, true},
		{"with partial", []model.Outcome{"success", "partial_success", "failure"}, false},
		{"with unknown", []model.Outcome{"unknown"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOverall()
			for _, oc := range tt.outcomes {
				o = o.Apply(analysisWith(oc, model.SentimentNeutral, 5, 5), 1)
			}
			assert.LessOrEqual(t, o.SuccessfulCalls+o.FailedCalls, o.TotalCalls)
			assert.Equal(t, tt.equal, o.SuccessfulCalls+o.FailedCalls == o.TotalCalls)
		})
	}
}

func TestOverall_SentimentFoldingIsExhaustive(t *testing.T) {
	o := NewOverall()
	for _, s := range []model.Sentiment{"positive", "negative", "neutral", "mixed", "", "ecstatic"} {
		o = o.Apply(analysisWith(model.OutcomeUnknown, s, 5, 5), 1)
	}
	assert.Equal(t, 1, o.PositiveInteractions)
	assert.Equal(t, 1, o.NegativeInteractions)
	assert.Equal(t, 4, o.NeutralInteractions)
	assert.Equal(t, o.TotalCalls, o.PositiveInteractions+o.NegativeInteractions+o.NeutralInteractions)
}

func TestOverall_KPIRunningMean(t *testing.T) {
	o := NewOverall()
	values := []int{7, 9, 4}
	for _, v := range values {
		o = o.Apply(analysisWith(model.OutcomeSuccess, model.SentimentPositive, v, float64(v)), 1)
	}
	// 7 -> 8 -> (8*2+4)/3 = 6.666.. -> 6.67
	for _, k := range model.KPIKeys {
		assert.InDelta(t, 6.67, o.KPIAverages[k], 1e-9, k)
	}
}

func TestOverall_KPIRoundingIsDeterministic(t *testing.T) {
	seq := []int{1, 2, 2, 9, 10, 3, 7}
	run := func() Overall {
		o := NewOverall()
		for _, v := range seq {
			o = o.Apply(analysisWith(model.OutcomeSuccess, model.SentimentPositive, v, 5), 1)
		}
		return o
	}
	a, b := run(), run()
	assert.Equal(t, a.KPIAverages, b.KPIAverages)
	// Intermediate rounding keeps the value within a cent of the true mean.
	assert.InDelta(t, 34.0/7, a.KPIAverages["call_success_rate"], 0.01)
}

func TestOverall_PartialKPIsFirstCall(t *testing.T) {
	a := analysisWith(model.OutcomeSuccess, model.SentimentPositive, 5, 6.1)
	a.KPIs["listening_skills"] = 9
	o := NewOverall().Apply(a, 30)

	require.Len(t, o.KPIAverages, 18)
	for k, v := range a.KPIs {
		assert.InDelta(t, float64(v), o.KPIAverages[k], 1e-9, k)
	}
}

func TestReport_Rates(t *testing.T) {
	empty := NewOverall().Report()
	assert.Zero(t, empty.SuccessRate)
	assert.Zero(t, empty.PositiveRate)
	assert.Zero(t, empty.NegativeRate)

	o := NewOverall()
	o = o.Apply(analysisWith(model.OutcomeSuccess, model.SentimentPositive, 5, 5), 1)
	o = o.Apply(analysisWith(model.OutcomeSuccess, model.SentimentNegative, 5, 5), 1)
	o = o.Apply(analysisWith(model.OutcomeFailure, model.SentimentMixed, 5, 5), 1)

	r := o.Report()
	assert.InDelta(t, 66.7, r.SuccessRate, 1e-9)
	assert.InDelta(t, 33.3, r.PositiveRate, 1e-9)
	assert.InDelta(t, 33.3, r.NegativeRate, 1e-9)
}

func TestReport_JSONIsFlat(t *testing.T) {
	o := NewOverall().Apply(analysisWith(model.OutcomeSuccess, model.SentimentPositive, 5, 5), 1)
	data, err := json.Marshal(o.Report())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Contains(t, m, "total_calls")
	assert.Contains(t, m, "kpi_averages")
	assert.Contains(t, m, "success_rate")
	assert.NotContains(t, m, "Overall")
}
