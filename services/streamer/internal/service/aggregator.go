package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/cache"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/config"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/repository"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrRetryBudgetExhausted = fmt.Errorf("optimistic retry budget exhausted: %w", apperr.ErrConcurrencyConflict)

var errVersionConflict = errors.New("metrics version changed")

// Aggregator folds counter deltas into product_metrics with optimistic
// version checks, retrying lost races with exponential backoff.
type Aggregator struct {
	repo     repository.MetricsRepository
	evictor  cache.Evictor
	settings config.Aggregator
	loc      *time.Location
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewAggregator(
	repo repository.MetricsRepository,
	evictor cache.Evictor,
	settings config.Aggregator,
	loc *time.Location,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Aggregator {
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = 50
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Aggregator{
		repo:     repo,
		evictor:  evictor,
		settings: settings,
		loc:      loc,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("service/aggregator"),
	}
}

func (a *Aggregator) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.settings.InitialDelay
	b.Multiplier = a.settings.Multiplier
	b.MaxInterval = a.settings.MaxDelay
	b.RandomizationFactor = a.settings.Jitter
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.settings.MaxAttempts-1)), ctx)
}

// Apply adds delta to the counters of productID inside tx and records it in
// the daily bucket of occurredAt.
func (a *Aggregator) Apply(ctx context.Context, tx *db.Tx, productID int64, delta domain.Delta, occurredAt time.Time) error {
	ctx, span := a.tracer.Start(ctx, "Aggregator.Apply")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", productID),
		attribute.Int64("delta.like", delta.Like),
		attribute.Int64("delta.view", delta.View),
		attribute.Int64("delta.sales", delta.Sales),
	)

	if delta.IsZero() {
		return nil
	}

	if err := a.repo.EnsureRow(ctx, tx, productID); err != nil {
		span.RecordError(err)
		return err
	}

	attempts := 0
	op := func() error {
		attempts++

		current, err := a.repo.Get(ctx, tx, productID)
		if err != nil {
			return backoff.Permanent(err)
		}

		current.Apply(delta)

		swapped, err := a.repo.CompareAndSwap(ctx, tx, current)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !swapped {
			a.metrics.OptimisticConflicts.WithLabelValues("product_metrics").Inc()
			return errVersionConflict
		}

		return nil
	}

	err := backoff.Retry(op, a.newBackOff(ctx))
	span.SetAttributes(attribute.Int("attempts", attempts))

	if errors.Is(err, errVersionConflict) {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			a.logger,
			"Optimistic retry budget exhausted",
			zap.Int64("product_id", productID),
			zap.Int("attempts", attempts),
		)

		return fmt.Errorf("%w: product %d after %d attempts", ErrRetryBudgetExhausted, productID, attempts)
	}
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := a.repo.AddDaily(ctx, tx, productID, occurredAt.In(a.loc), delta); err != nil {
		span.RecordError(err)
		return err
	}

	key := cache.ProductDetailKey(productID)
	tx.AfterCommit("cache.evict product", func(ctx context.Context) error {
		return a.evictor.Evict(ctx, key)
	})

	if attempts > 1 {
		mylogger.Debug(
			ctx,
			a.logger,
			"Metrics applied after conflicts",
			zap.Int64("product_id", productID),
			zap.Int("attempts", attempts),
		)
	}

	return nil
}
