// Package store keeps call records: the in-memory store queried by the
// service, and durable archives that records are written through to.
package store

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callscore/internal/model"
)

// ErrNotFound is returned when no record exists for a call id.
var ErrNotFound = eris.New("store: call not found")

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 50

// Memory maps call ids to records for the life of the process. Put
// overwrites. There is no delete.
//
// Memory is not safe for concurrent use; ingest.State guards it.
type Memory struct {
	records map[string]model.CallRecord
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]model.CallRecord)}
}

// Put stores rec under its call id, replacing any existing record.
func (m *Memory) Put(rec model.CallRecord) {
	m.records[rec.CallID] = rec.Clone()
}

// Get returns a copy of the record for id.
func (m *Memory) Get(id string) (model.CallRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return model.CallRecord{}, eris.Wrapf(ErrNotFound, "call %s", id)
	}
	return rec.Clone(), nil
}

// List returns up to limit records, newest first by ingestion timestamp.
// Records with equal timestamps are ordered by call id.
func (m *Memory) List(limit int) []model.CallRecord {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	all := make([]model.CallRecord, 0, len(m.records))
	for _, rec := range m.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		return all[i].CallID < all[j].CallID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	for i := range all {
		all[i] = all[i].Clone()
	}
	return all
}

// Len returns the number of stored records.
func (m *Memory) Len() int { return len(m.records) }
