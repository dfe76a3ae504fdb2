package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callscore/internal/cost"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(false)

	m.IngestedCall("xelion", "success")
	m.IngestedCall("xelion", "success")
	m.IngestedCall("elevenlabs", "unknown")
	m.DroppedNotification("websocket")
	m.ArchiveError()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CallsIngested.WithLabelValues("xelion", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsIngested.WithLabelValues("elevenlabs", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsDropped.WithLabelValues("websocket")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArchiveErrors))
}

func TestMetrics_IngestedCallBoundedLabels(t *testing.T) {
	m := New(false)

	for i := range 500 {
		m.IngestedCall(fmt.Sprintf("crm-%d", i), fmt.Sprintf("Resolved after %d minutes", i))
	}
	m.IngestedCall("xelion", "partial_success")

	assert.Equal(t, 2, testutil.CollectAndCount(m.CallsIngested))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.CallsIngested.WithLabelValues("other", "other")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallsIngested.WithLabelValues("xelion", "partial_success")))
}

func TestMetrics_ObserveClassifier(t *testing.T) {
	m := New(false)

	m.ObserveClassifier(200*time.Millisecond, nil)
	m.ObserveClassifier(3*time.Second, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassifierFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ClassifierDuration))
}

func TestMetrics_ObserveUsage(t *testing.T) {
	m := New(false)

	m.ObserveUsage("anthropic", cost.Usage{InputTokens: 1200, OutputTokens: 300, CacheReadTokens: 900}, 0.0081)
	m.ObserveUsage("anthropic", cost.Usage{InputTokens: 800, OutputTokens: 200}, 0.0054)

	assert.Equal(t, 2000.0, testutil.ToFloat64(m.ClassifierTokens.WithLabelValues("anthropic", "input")))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.ClassifierTokens.WithLabelValues("anthropic", "output")))
	assert.Equal(t, 900.0, testutil.ToFloat64(m.ClassifierTokens.WithLabelValues("anthropic", "cache_read")))
	assert.InDelta(t, 0.0135, testutil.ToFloat64(m.ClassifierCostUSD.WithLabelValues("anthropic")), 1e-9)
	// cache_write was never observed.
	assert.Equal(t, 3, testutil.CollectAndCount(m.ClassifierTokens))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(false), New(false)
	a.ArchiveError()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ArchiveErrors))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(true)
	m.IngestedCall("manual", "failure")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `callscore_calls_ingested_total{outcome="failure",source="manual"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
