package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callscore/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate  AlertType = "call_failure_rate"
	AlertNegativeRate AlertType = "negative_sentiment_rate"
	AlertLowScore     AlertType = "low_average_score"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Windows with fewer than MinCalls calls never alert. A zero threshold
// disables its check.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	if snap.TotalCalls == 0 || snap.TotalCalls < a.cfg.MinCalls {
		return nil
	}

	var alerts []Alert
	now := snap.CollectedAt

	if a.cfg.FailureRateThreshold > 0 && snap.FailureRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Call failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d calls in last %dd)",
				snap.FailureRate*100, a.cfg.FailureRateThreshold*100,
				snap.FailedCalls, snap.TotalCalls, snap.LookbackDays,
			),
			Details: map[string]any{
				"failure_rate": snap.FailureRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.FailedCalls,
				"total":        snap.TotalCalls,
			},
			Timestamp: now,
		})
	}

	if a.cfg.NegativeRateThreshold > 0 && snap.NegativeRate > a.cfg.NegativeRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertNegativeRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Negative interaction rate %.1f%% exceeds threshold %.1f%% in last %dd",
				snap.NegativeRate*100, a.cfg.NegativeRateThreshold*100, snap.LookbackDays,
			),
			Details: map[string]any{
				"negative_rate": snap.NegativeRate,
				"threshold":     a.cfg.NegativeRateThreshold,
				"negative":      snap.NegativeInteractions,
				"total":         snap.TotalCalls,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MinAverageScore > 0 && snap.AverageScore < a.cfg.MinAverageScore {
		alerts = append(alerts, Alert{
			Type:     AlertLowScore,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average call score %.2f is below %.2f in last %dd",
				snap.AverageScore, a.cfg.MinAverageScore, snap.LookbackDays,
			),
			Details: map[string]any{
				"average_score": snap.AverageScore,
				"minimum":       a.cfg.MinAverageScore,
				"total":         snap.TotalCalls,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
