// Package monitoring watches call quality aggregates and raises alerts when
// they cross configured thresholds.
package monitoring

import (
	"time"

	"github.com/sells-group/callscore/internal/stats"
)

// Snapshot is a point-in-time view of call quality over the lookback window.
type Snapshot struct {
	TotalCalls           int     `json:"total_calls"`
	SuccessfulCalls      int     `json:"successful_calls"`
	FailedCalls          int     `json:"failed_calls"`
	NegativeInteractions int     `json:"negative_interactions"`
	FailureRate          float64 `json:"failure_rate"`
	NegativeRate         float64 `json:"negative_rate"`
	AverageScore         float64 `json:"average_score"`

	LookbackDays int       `json:"lookback_days"`
	CollectedAt  time.Time `json:"collected_at"`
}

// DailySource yields the per-day aggregates ending at now.
type DailySource interface {
	Daily(now time.Time, days int) []stats.Day
}

// Collector summarizes the daily aggregates.
type Collector struct {
	source DailySource
}

// NewCollector creates a collector over source.
func NewCollector(source DailySource) *Collector {
	return &Collector{source: source}
}

// Collect sums the last lookbackDays days (including today). The average
// score is weighted by each day's call count.
func (c *Collector) Collect(now time.Time, lookbackDays int) *Snapshot {
	if lookbackDays <= 0 {
		lookbackDays = 1
	}
	snap := &Snapshot{
		LookbackDays: lookbackDays,
		CollectedAt:  now.UTC(),
	}

	var scoreSum float64
	for _, d := range c.source.Daily(now, lookbackDays) {
		snap.TotalCalls += d.TotalCalls
		snap.SuccessfulCalls += d.SuccessfulCalls
		snap.FailedCalls += d.FailedCalls
		snap.NegativeInteractions += d.NegativeInteractions
		scoreSum += d.AverageScore * float64(d.TotalCalls)
	}

	if snap.TotalCalls > 0 {
		n := float64(snap.TotalCalls)
		snap.FailureRate = float64(snap.FailedCalls) / n
		snap.NegativeRate = float64(snap.NegativeInteractions) / n
		snap.AverageScore = scoreSum / n
	}
	return snap
}
