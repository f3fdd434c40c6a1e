package resilience

import (
	"context"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/config"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type RetrySettings struct {
	Operation   string
	MaxAttempts int
	Delay       time.Duration
	// Retryable decides whether a failed attempt may be repeated. Errors it
	// rejects are returned immediately.
	Retryable func(err error) bool
}

func RetrySettingsFrom(operation string, cfg config.Retry, retryable func(err error) bool) RetrySettings {
	return RetrySettings{
		Operation:   operation,
		MaxAttempts: cfg.MaxAttempts,
		Delay:       cfg.Delay,
		Retryable:   retryable,
	}
}

// Retry repeats an operation a fixed number of times with a fixed delay.
type Retry struct {
	settings RetrySettings
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewRetry(s RetrySettings, m *metrics.Metrics, logger *zap.Logger) *Retry {
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 1
	}
	if s.Retryable == nil {
		s.Retryable = func(error) bool { return false }
	}

	return &Retry{settings: s, metrics: m, logger: logger}
}

func (r *Retry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0

	operation := func() error {
		attempt++

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !r.settings.Retryable(err) {
			return backoff.Permanent(err)
		}

		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.settings.Delay), uint64(r.settings.MaxAttempts-1)),
		ctx,
	)

	return backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		r.metrics.RetryAttempts.WithLabelValues(r.settings.Operation).Inc()

		mylogger.Warn(
			ctx,
			r.logger,
			"Transient failure, retrying",
			zap.String("operation", r.settings.Operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.settings.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}
