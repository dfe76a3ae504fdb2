package stats

import (
	"time"

	"github.com/sells-group/callscore/internal/model"
)

// DateLayout is the day-bucket key format.
const DateLayout = "2006-01-02"

// Day is one calendar-day bucket.
type Day struct {
	Date                 string  `json:"date" yaml:"date"`
	TotalCalls           int     `json:"total_calls" yaml:"total_calls"`
	SuccessfulCalls      int     `json:"successful_calls" yaml:"successful_calls"`
	FailedCalls          int     `json:"failed_calls" yaml:"failed_calls"`
	PositiveInteractions int     `json:"positive_interactions" yaml:"positive_interactions"`
	NegativeInteractions int     `json:"negative_interactions" yaml:"negative_interactions"`
	NeutralInteractions  int     `json:"neutral_interactions" yaml:"neutral_interactions"`
	AverageScore         float64 `json:"average_score" yaml:"average_score"`
}

// Apply returns the bucket after one more call. average_score is the running
// mean of overall_score kept at full precision.
func (d Day) Apply(a model.AnalysisResult) Day {
	d.TotalCalls++
	d.SuccessfulCalls, d.FailedCalls = countOutcome(a.CallOutcome, d.SuccessfulCalls, d.FailedCalls)
	d.PositiveInteractions, d.NegativeInteractions, d.NeutralInteractions = countSentiment(
		a.InteractionSentiment, d.PositiveInteractions, d.NegativeInteractions, d.NeutralInteractions)

	n := float64(d.TotalCalls)
	d.AverageScore = (d.AverageScore*(n-1) + a.OverallScore) / n
	return d
}

// Daily maps calendar dates to buckets. Every date is computed in a single
// fixed location so bucketing does not depend on the host timezone.
type Daily struct {
	loc  *time.Location
	days map[string]Day
}

// NewDaily creates an empty aggregator bucketing in loc (UTC if nil).
func NewDaily(loc *time.Location) *Daily {
	if loc == nil {
		loc = time.UTC
	}
	return &Daily{loc: loc, days: make(map[string]Day)}
}

// Location returns the bucketing timezone.
func (d *Daily) Location() *time.Location { return d.loc }

// Key returns the bucket key for t.
func (d *Daily) Key(t time.Time) string {
	return t.In(d.loc).Format(DateLayout)
}

// Apply folds one call ingested at t into its day bucket, creating the
// bucket on first use, and returns the updated bucket.
func (d *Daily) Apply(t time.Time, a model.AnalysisResult) Day {
	key := d.Key(t)
	day, ok := d.days[key]
	if !ok {
		day = Day{Date: key}
	}
	day = day.Apply(a)
	d.days[key] = day
	return day
}

// Get returns the raw bucket for a date key.
func (d *Daily) Get(key string) (Day, bool) {
	day, ok := d.days[key]
	return day, ok
}

// Len reports how many buckets exist.
func (d *Daily) Len() int { return len(d.days) }

// Window returns the last days calendar buckets ending at the day containing
// now, oldest first. Days without calls are zero-filled and average_score is
// rounded to two decimals.
func (d *Daily) Window(now time.Time, days int) []Day {
	if days <= 0 {
		return []Day{}
	}
	today := now.In(d.loc)
	// Noon avoids skipping or repeating a date across DST shifts.
	anchor := time.Date(today.Year(), today.Month(), today.Day(), 12, 0, 0, 0, d.loc)

	out := make([]Day, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := anchor.AddDate(0, 0, -i).Format(DateLayout)
		day, ok := d.days[key]
		if !ok {
			day = Day{Date: key}
		}
		day.AverageScore = model.Round(day.AverageScore, 2)
		out = append(out, day)
	}
	return out
}
