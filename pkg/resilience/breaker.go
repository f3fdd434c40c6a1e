package resilience

import (
	"errors"
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/config"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var ErrCircuitOpen = fmt.Errorf("circuit breaker rejected call: %w", apperr.ErrExternalDependency)

type BreakerSettings struct {
	Name             string
	WindowSize       int
	MinCalls         int
	FailureThreshold float64
	CoolDown         time.Duration
	HalfOpenCalls    uint32
	// IsSuccessful reports errors that must not count as failures, such as
	// business rejections from a healthy dependency.
	IsSuccessful func(err error) bool
}

func BreakerSettingsFrom(name string, cfg config.Breaker) BreakerSettings {
	return BreakerSettings{
		Name:             name,
		WindowSize:       cfg.WindowSize,
		MinCalls:         cfg.MinCalls,
		FailureThreshold: cfg.FailureThreshold,
		CoolDown:         cfg.CoolDown,
		HalfOpenCalls:    cfg.HalfOpenCalls,
	}
}

// Breaker is a gobreaker circuit whose trip decision is taken over a
// count-based rolling window of the most recent calls.
type Breaker struct {
	name             string
	cb               *gobreaker.CircuitBreaker
	window           *slidingWindow
	minCalls         int
	failureThreshold float64
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

func NewBreaker(s BreakerSettings, m *metrics.Metrics, logger *zap.Logger) *Breaker {
	if s.MinCalls <= 0 {
		s.MinCalls = s.WindowSize
	}
	if s.IsSuccessful == nil {
		s.IsSuccessful = func(err error) bool { return err == nil }
	}

	b := &Breaker{
		name:             s.Name,
		window:           newSlidingWindow(s.WindowSize),
		minCalls:         s.MinCalls,
		failureThreshold: s.FailureThreshold,
		metrics:          m,
		logger:           logger,
	}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenCalls,
		Timeout:     s.CoolDown,
		ReadyToTrip: func(_ gobreaker.Counts) bool {
			return b.overThreshold()
		},
		// gobreaker only consults ReadyToTrip after a failure, so a success
		// that leaves the window over the threshold is reported as a failure
		// here. Execute still hands the caller the real result.
		IsSuccessful: func(err error) bool {
			failed := !s.IsSuccessful(err)
			b.window.record(failed)
			if failed {
				return false
			}

			return !b.overThreshold()
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to != gobreaker.StateOpen {
				b.window.reset()
			}

			m.BreakerState.WithLabelValues(name).Set(stateValue(to))

			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	m.BreakerState.WithLabelValues(s.Name).Set(stateValue(gobreaker.StateClosed))

	return b
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) overThreshold() bool {
	calls, failures := b.window.snapshot()
	if calls == 0 || calls < b.minCalls {
		return false
	}

	return float64(failures)/float64(calls) >= b.failureThreshold
}

func ExecuteWithBreaker[T any](b *Breaker, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.metrics.BreakerRejections.WithLabelValues(b.name).Inc()
			return *new(T), fmt.Errorf("%w: %s: %w", ErrCircuitOpen, b.name, err)
		}

		return cast[T](res), err
	}

	return cast[T](res), nil
}

func cast[T any](v interface{}) T {
	out, ok := v.(T)
	if !ok {
		return *new(T)
	}

	return out
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
