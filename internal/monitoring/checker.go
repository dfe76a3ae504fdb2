package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/callscore/internal/config"
)

// Checker evaluates the recent daily aggregates on a ticker. An alert type is
// delivered once when its threshold is breached and again only after the
// breach has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	now       func() time.Time

	// firing holds alert types delivered and still breached. Only the Run
	// goroutine touches it.
	firing map[AlertType]bool
}

func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		now:       time.Now,
		firing:    map[AlertType]bool{},
	}
}

// Run checks once immediately, then every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring"))
	log.Info("call quality checks enabled",
		zap.Duration("interval", interval),
		zap.Int("lookback_days", c.cfg.LookbackDays),
		zap.Int("min_calls", c.cfg.MinCalls),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		c.check(ctx, log)

		select {
		case <-ctx.Done():
			log.Info("call quality checks stopped")
			return
		case <-ticker.C:
		}
	}
}

// check delivers newly breached alerts and returns how many were sent.
func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap := c.collector.Collect(c.now(), c.cfg.LookbackDays)
	alerts := c.alerter.Evaluate(snap)

	breached := make(map[AlertType]bool, len(alerts))
	sent := 0
	for _, a := range alerts {
		breached[a.Type] = true
		if c.firing[a.Type] {
			continue
		}
		if c.alerter.SendAlerts(ctx, []Alert{a}) == 1 {
			c.firing[a.Type] = true
			sent++
		}
	}
	for t := range c.firing {
		if !breached[t] {
			log.Info("monitoring: alert cleared", zap.String("type", string(t)))
			delete(c.firing, t)
		}
	}

	log.Debug("monitoring: check complete",
		zap.Int("calls", snap.TotalCalls),
		zap.Int("breached", len(alerts)),
		zap.Int("sent", sent),
	)
	return sent
}
