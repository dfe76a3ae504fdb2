// Package metrics holds the Prometheus instrumentation for ingestion.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/callscore/internal/cost"
	"github.com/sells-group/callscore/internal/model"
)

// Metrics is the set of collectors for one process. Collectors are
// registered on their own registry so tests can build independent sets.
type Metrics struct {
	registry *prometheus.Registry

	CallsIngested        *prometheus.CounterVec
	ClassifierFailures   prometheus.Counter
	ClassifierDuration   prometheus.Histogram
	ClassifierTokens     *prometheus.CounterVec
	ClassifierCostUSD    *prometheus.CounterVec
	NotificationsDropped *prometheus.CounterVec
	ArchiveErrors        prometheus.Counter
}

// New creates and registers all collectors. When withRuntime is set the Go
// runtime and process collectors are registered too.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CallsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callscore_calls_ingested_total",
				Help: "Calls committed to the store, by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		ClassifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callscore_classifier_failures_total",
			Help: "Classifier calls that fell back to the defaulted analysis",
		}),
		ClassifierDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "callscore_classifier_duration_seconds",
			Help:    "Classifier call latency, including retries",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		ClassifierTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callscore_classifier_tokens_total",
				Help: "Tokens consumed by the classifier, by provider and kind",
			},
			[]string{"provider", "kind"},
		),
		ClassifierCostUSD: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callscore_classifier_cost_usd_total",
				Help: "Estimated classifier spend in USD",
			},
			[]string{"provider"},
		),
		NotificationsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callscore_notifications_dropped_total",
				Help: "Events not delivered because a subscriber queue was full",
			},
			[]string{"subscriber"},
		),
		ArchiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callscore_archive_errors_total",
			Help: "Failed archive write-throughs",
		}),
	}

	m.registry.MustRegister(
		m.CallsIngested,
		m.ClassifierFailures,
		m.ClassifierDuration,
		m.ClassifierTokens,
		m.ClassifierCostUSD,
		m.NotificationsDropped,
		m.ArchiveErrors,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveClassifier records one classifier attempt. It matches the
// analysis.Analyzer OnResult hook.
func (m *Metrics) ObserveClassifier(elapsed time.Duration, err error) {
	m.ClassifierDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.ClassifierFailures.Inc()
	}
}

// ObserveUsage records the tokens and estimated cost of one completion.
func (m *Metrics) ObserveUsage(provider string, u cost.Usage, usd float64) {
	m.ClassifierTokens.WithLabelValues(provider, "input").Add(float64(u.InputTokens))
	m.ClassifierTokens.WithLabelValues(provider, "output").Add(float64(u.OutputTokens))
	if u.CacheWriteTokens > 0 {
		m.ClassifierTokens.WithLabelValues(provider, "cache_write").Add(float64(u.CacheWriteTokens))
	}
	if u.CacheReadTokens > 0 {
		m.ClassifierTokens.WithLabelValues(provider, "cache_read").Add(float64(u.CacheReadTokens))
	}
	m.ClassifierCostUSD.WithLabelValues(provider).Add(usd)
}

// IngestedCall counts one committed call. Both values come from request
// bodies or classifier replies, so anything outside the known vocabularies is
// labelled "other".
func (m *Metrics) IngestedCall(source, outcome string) {
	m.CallsIngested.WithLabelValues(sourceLabel(source), outcomeLabel(outcome)).Inc()
}

const otherLabel = "other"

func sourceLabel(s string) string {
	switch model.Source(s) {
	case model.SourceElevenLabs, model.SourceXelion, model.SourceManual:
		return s
	default:
		return otherLabel
	}
}

func outcomeLabel(o string) string {
	switch model.Outcome(o) {
	case model.OutcomeSuccess, model.OutcomeFailure, model.OutcomePartialSuccess, model.OutcomeUnknown:
		return o
	default:
		return otherLabel
	}
}

// DroppedNotification counts one missed event for subscriber.
func (m *Metrics) DroppedNotification(subscriber string) {
	m.NotificationsDropped.WithLabelValues(subscriber).Inc()
}

// ArchiveError counts one failed write-through.
func (m *Metrics) ArchiveError() {
	m.ArchiveErrors.Inc()
}
