package ingest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callscore/internal/metrics"
	"github.com/sells-group/callscore/internal/model"
	"github.com/sells-group/callscore/internal/notify"
	"github.com/sells-group/callscore/internal/store"
)

// ErrMissingTranscript rejects a submission before any side effect.
var ErrMissingTranscript = eris.New("ingest: transcript is required")

// Analyzer produces a usable analysis for every transcript, substituting a
// defaulted result when classification fails.
type Analyzer interface {
	Analyze(ctx context.Context, callID, transcript string, meta model.CallMetadata) model.AnalysisResult
}

// Request is one submitted call.
type Request struct {
	CallID     string
	Transcript string
	Metadata   model.CallMetadata
}

// Coordinator is the single entry point for new calls.
type Coordinator struct {
	state    *State
	analyzer Analyzer
	broker   *notify.Broker
	archive  store.Archive
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
	log      *zap.Logger

	// archiveLocks orders write-through per call id.
	archiveLocks [16]sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBroker publishes an event for every committed call.
func WithBroker(b *notify.Broker) Option {
	return func(c *Coordinator) { c.broker = b }
}

// WithArchive writes every committed call through to a.
func WithArchive(a store.Archive) Option {
	return func(c *Coordinator) { c.archive = a }
}

// WithMetrics records ingestion counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the ingestion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator wires a coordinator over state.
func NewCoordinator(state *State, analyzer Analyzer, opts ...Option) *Coordinator {
	c := &Coordinator{
		state:    state,
		analyzer: analyzer,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		log:      zap.L().With(zap.String("component", "ingest")),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the state read by query handlers.
func (c *Coordinator) State() *State { return c.state }

// Ingest classifies, stores and aggregates one call, then notifies
// subscribers. Classification happens outside the lock and never fails the
// ingestion. Once started, ingestion is not cancelled by ctx.
func (c *Coordinator) Ingest(ctx context.Context, req Request) (model.CallRecord, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return model.CallRecord{}, ErrMissingTranscript
	}
	ctx = context.WithoutCancel(ctx)

	callID := strings.TrimSpace(req.CallID)
	if callID == "" {
		callID = c.newID()
	}
	meta := req.Metadata
	if meta.Source == "" {
		meta.Source = model.SourceManual
	}

	analysis := c.analyzer.Analyze(ctx, callID, req.Transcript, meta)

	rec := model.CallRecord{
		CallID:     callID,
		Transcript: req.Transcript,
		Metadata:   meta,
		Analysis:   analysis,
		Timestamp:  c.now().UTC(),
		Source:     meta.Source,
	}
	c.state.Commit(rec)

	if c.metrics != nil {
		c.metrics.IngestedCall(string(rec.Source), string(rec.Analysis.CallOutcome))
	}
	if c.archive != nil {
		c.writeThrough(ctx, callID)
	}
	if c.broker != nil {
		c.broker.Publish(notify.NewEvent(rec, c.state.Location()))
	}

	c.log.Info("call ingested",
		zap.String("call_id", callID),
		zap.String("source", string(rec.Source)),
		zap.String("outcome", string(rec.Analysis.CallOutcome)),
		zap.Float64("overall_score", rec.Analysis.OverallScore),
	)
	return rec, nil
}

// writeThrough saves the latest committed version of callID, so concurrent
// re-deliveries of one id leave the archive matching the in-memory store.
func (c *Coordinator) writeThrough(ctx context.Context, callID string) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(callID))
	mu := &c.archiveLocks[h.Sum32()%uint32(len(c.archiveLocks))]
	mu.Lock()
	defer mu.Unlock()

	rec, err := c.state.Get(callID)
	if err == nil {
		err = c.archive.Save(ctx, rec)
	}
	if err != nil {
		c.log.Error("archive write-through failed", zap.String("call_id", callID), zap.Error(err))
		if c.metrics != nil {
			c.metrics.ArchiveError()
		}
	}
}

// Restore replays every archived record, oldest first, into the state. It
// does not publish or write back. Each archived call id counts once, since
// the archive keeps only the latest delivery.
func (c *Coordinator) Restore(ctx context.Context) (int, error) {
	if c.archive == nil {
		return 0, nil
	}
	recs, err := c.archive.List(ctx, 0)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: restore")
	}
	for i := len(recs) - 1; i >= 0; i-- {
		c.state.Commit(recs[i])
	}
	c.log.Info("restored calls from archive", zap.Int("calls", len(recs)))
	return len(recs), nil
}
