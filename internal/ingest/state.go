// Package ingest sequences classification, storage, aggregation and
// notification for each submitted call.
package ingest

import (
	"sync"
	"time"

	"github.com/sells-group/callscore/internal/model"
	"github.com/sells-group/callscore/internal/stats"
	"github.com/sells-group/callscore/internal/store"
)

// State owns the call store and both aggregates. A single lock covers all
// three, so readers never see a record whose effect on the stats is
// missing, and the running means never read a stale total.
type State struct {
	mu      sync.RWMutex
	calls   *store.Memory
	overall stats.Overall
	daily   *stats.Daily
}

// NewState creates empty state bucketing days in loc (UTC if nil).
func NewState(loc *time.Location) *State {
	return &State{
		calls:   store.NewMemory(),
		overall: stats.NewOverall(),
		daily:   stats.NewDaily(loc),
	}
}

// Commit stores rec and folds it into both aggregates as one unit.
func (s *State) Commit(rec model.CallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.Put(rec)
	s.overall = s.overall.Apply(rec.Analysis, rec.Metadata.DurationSeconds)
	s.daily.Apply(rec.Timestamp, rec.Analysis)
}

// Get returns the record for id or store.ErrNotFound.
func (s *State) Get(id string) (model.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls.Get(id)
}

// List returns up to limit records, newest first.
func (s *State) List(limit int) []model.CallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls.List(limit)
}

// Overall returns a snapshot of the process-wide aggregate.
func (s *State) Overall() stats.Overall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overall.Clone()
}

// Report returns the overall aggregate with derived rates.
func (s *State) Report() stats.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overall.Report()
}

// Daily returns the last days buckets ending today, oldest first.
func (s *State) Daily(now time.Time, days int) []stats.Day {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.daily.Window(now, days)
}

// Location is the timezone used for day buckets.
func (s *State) Location() *time.Location { return s.daily.Location() }
