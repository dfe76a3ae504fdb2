// Package stats maintains the running aggregates derived from ingested
// calls: process-wide totals and per-day buckets.
//
// The aggregates are plain values; they are not safe for concurrent use.
// Callers serialize updates (see ingest.State).
package stats

import "github.com/sells-group/callscore/internal/model"

// Overall is the process-wide aggregate across every ingested call.
type Overall struct {
	TotalCalls           int                `json:"total_calls" yaml:"total_calls"`
	SuccessfulCalls      int                `json:"successful_calls" yaml:"successful_calls"`
	FailedCalls          int                `json:"failed_calls" yaml:"failed_calls"`
	PositiveInteractions int                `json:"positive_interactions" yaml:"positive_interactions"`
	NegativeInteractions int                `json:"negative_interactions" yaml:"negative_interactions"`
	NeutralInteractions  int                `json:"neutral_interactions" yaml:"neutral_interactions"`
	TotalCallDuration    float64            `json:"total_call_duration" yaml:"total_call_duration"`
	AverageCallDuration  float64            `json:"average_call_duration" yaml:"average_call_duration"`
	KPIAverages          map[string]float64 `json:"kpi_averages" yaml:"kpi_averages"`
}

// NewOverall returns an empty aggregate.
func NewOverall() Overall {
	return Overall{KPIAverages: map[string]float64{}}
}

// Apply returns the aggregate after one more call. The receiver is not
// modified.
//
// KPI averages use the online-mean recurrence with n = post-increment
// total_calls and are rounded to two decimals after every update, so the
// result depends on the order calls arrive in.
func (o Overall) Apply(a model.AnalysisResult, duration float64) Overall {
	next := o.Clone()

	next.TotalCalls++
	next.TotalCallDuration += duration
	next.AverageCallDuration = next.TotalCallDuration / float64(next.TotalCalls)

	next.SuccessfulCalls, next.FailedCalls = countOutcome(a.CallOutcome, next.SuccessfulCalls, next.FailedCalls)
	next.PositiveInteractions, next.NegativeInteractions, next.NeutralInteractions = countSentiment(
		a.InteractionSentiment, next.PositiveInteractions, next.NegativeInteractions, next.NeutralInteractions)

	n := float64(next.TotalCalls)
	for _, k := range model.KPIKeys {
		v, ok := a.KPIs[k]
		if !ok {
			continue
		}
		old := next.KPIAverages[k]
		next.KPIAverages[k] = model.Round((old*(n-1)+float64(v))/n, 2)
	}
	return next
}

// Clone returns a copy that shares no map with o.
func (o Overall) Clone() Overall {
	kpis := make(map[string]float64, len(model.KPIKeys))
	for k, v := range o.KPIAverages {
		kpis[k] = v
	}
	o.KPIAverages = kpis
	return o
}

// Report is Overall plus the derived percentage rates served to readers.
type Report struct {
	Overall      `yaml:",inline"`
	SuccessRate  float64 `json:"success_rate" yaml:"success_rate"`
	PositiveRate float64 `json:"positive_rate" yaml:"positive_rate"`
	NegativeRate float64 `json:"negative_rate" yaml:"negative_rate"`
}

// Report derives the read-side view. Rates are percentages of total_calls
// rounded to one decimal; an empty aggregate yields zero rates.
func (o Overall) Report() Report {
	return Report{
		Overall:      o.Clone(),
		SuccessRate:  rate(o.SuccessfulCalls, o.TotalCalls),
		PositiveRate: rate(o.PositiveInteractions, o.TotalCalls),
		NegativeRate: rate(o.NegativeInteractions, o.TotalCalls),
	}
}

func rate(count, total int) float64 {
	return model.Round(float64(count)/float64(max(total, 1))*100, 1)
}

// countOutcome tallies only binary success/failure. partial_success and
// unknown increment neither counter.
func countOutcome(o model.Outcome, success, failure int) (int, int) {
	switch o {
	case model.OutcomeSuccess:
		success++
	case model.OutcomeFailure:
		failure++
	}
	return success, failure
}

// countSentiment folds everything other than positive/negative, mixed
// included, into neutral.
func countSentiment(s model.Sentiment, pos, neg, neu int) (int, int, int) {
	switch s {
	case model.SentimentPositive:
		pos++
	case model.SentimentNegative:
		neg++
	default:
		neu++
	}
	return pos, neg, neu
}
