// Package notify fans ingestion events out to live subscribers. Delivery is
// best-effort and at-most-once: a subscriber whose queue is full misses the
// event and the publisher never waits.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/callscore/internal/model"
)

// TimestampLayout is the wall-clock format carried in events.
const TimestampLayout = "15:04:05"

// Event summarizes one ingested call.
type Event struct {
	CallID    string               `json:"call_id"`
	Analysis  model.AnalysisResult `json:"analysis"`
	Duration  float64              `json:"duration"`
	AgentID   string               `json:"agent_id"`
	Timestamp string               `json:"timestamp"`
}

// NewEvent builds the event for rec, rendering its timestamp in loc.
func NewEvent(rec model.CallRecord, loc *time.Location) Event {
	if loc == nil {
		loc = time.UTC
	}
	return Event{
		CallID:    rec.CallID,
		Analysis:  rec.Analysis.Clone(),
		Duration:  rec.Metadata.DurationSeconds,
		AgentID:   rec.Metadata.AgentID,
		Timestamp: rec.Timestamp.In(loc).Format(TimestampLayout),
	}
}

// Subscription is one subscriber's bounded queue.
type Subscription struct {
	C <-chan Event

	name    string
	ch      chan Event
	dropped atomic.Uint64
}

// Name identifies the subscriber in logs and metrics.
func (s *Subscription) Name() string { return s.name }

// Dropped returns how many events this subscriber missed.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Broker is a publish/subscribe channel with per-subscriber bounded queues.
type Broker struct {
	buffer int

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	// OnDrop, if set, is called for each event a subscriber misses.
	OnDrop func(subscriber string)
}

// NewBroker creates a broker whose subscribers queue up to buffer events.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broker{buffer: buffer, subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber. Its channel is closed by Unsubscribe
// or Close.
func (b *Broker) Subscribe(name string) *Subscription {
	ch := make(chan Event, b.buffer)
	s := &Subscription{C: ch, name: name, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes s and closes its channel. Safe to call more than once.
func (b *Broker) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Publish offers ev to every subscriber without blocking.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
			if b.OnDrop != nil {
				b.OnDrop(s.name)
			}
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unsubscribes everyone. Later subscriptions are born closed.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		close(s.ch)
	}
	b.subs = make(map[*Subscription]struct{})
	b.closed = true
}
