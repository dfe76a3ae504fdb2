package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callscore/internal/model"
	"github.com/sells-group/callscore/internal/resilience"
)

// Classifier scores a transcript and returns the raw, unvalidated payload.
type Classifier interface {
	Classify(ctx context.Context, transcript string, meta model.CallMetadata) (map[string]any, error)
}

// ErrDisabled is returned by Disabled.
var ErrDisabled = eris.New("classifier disabled")

// Disabled is a Classifier that always fails, so every call receives the
// defaulted analysis.
type Disabled struct{}

// Classify implements Classifier.
func (Disabled) Classify(context.Context, string, model.CallMetadata) (map[string]any, error) {
	return nil, ErrDisabled
}

// Analyzer bounds classifier calls by a timeout and a circuit breaker and
// always yields a usable result.
type Analyzer struct {
	classifier Classifier
	timeout    time.Duration
	breaker    *resilience.Breaker

	// OnResult, if set, observes every classification attempt.
	OnResult func(elapsed time.Duration, err error)
}

// NewAnalyzer creates an Analyzer. A nil breaker disables short-circuiting.
// A breaker without ShouldTrip gets IsDependencyFailure.
func NewAnalyzer(c Classifier, timeout time.Duration, breaker *resilience.Breaker) *Analyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if breaker != nil && breaker.ShouldTrip == nil {
		breaker.ShouldTrip = IsDependencyFailure
	}
	return &Analyzer{classifier: c, timeout: timeout, breaker: breaker}
}

// IsDependencyFailure reports whether err means the provider itself is
// unhealthy. Unparsable replies and missing payloads are not.
func IsDependencyFailure(err error) bool {
	return resilience.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
}

// Analyze classifies transcript. On any classifier failure, including a
// timeout or an open breaker, it returns Defaulted with the cause.
func (a *Analyzer) Analyze(ctx context.Context, callID, transcript string, meta model.CallMetadata) model.AnalysisResult {
	start := time.Now()
	raw, err := a.classify(ctx, transcript, meta)
	if a.OnResult != nil {
		a.OnResult(time.Since(start), err)
	}
	if err != nil {
		zap.L().Warn("analysis: classifier failed, using defaults",
			zap.String("call_id", callID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return Defaulted(err.Error())
	}
	return Normalize(raw)
}

func (a *Analyzer) classify(ctx context.Context, transcript string, meta model.CallMetadata) (map[string]any, error) {
	if a.breaker != nil {
		if err := a.breaker.Allow(); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.classifier.Classify(ctx, transcript, meta)
	if err == nil && raw == nil {
		err = eris.New("analysis: classifier returned no payload")
	}
	if a.breaker != nil {
		recorded := err
		if err != nil && ctx.Err() != nil {
			recorded = ctx.Err()
		}
		a.breaker.Record(recorded)
	}
	return raw, err
}
