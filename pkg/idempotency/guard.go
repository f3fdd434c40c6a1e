package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Meta identifies a received message in the ledger.
type Meta struct {
	EventID      string
	EventType    string
	AggregateKey string
}

// FallbackEventID builds a transport-assigned id for messages whose envelope
// carries none.
func FallbackEventID(topic string, partition int32, offset int64) string {
	return fmt.Sprintf("%s-%d-%d", topic, partition, offset)
}

type Guard struct {
	uow     *db.UnitOfWork
	repo    Repository
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewGuard(uow *db.UnitOfWork, repo Repository, m *metrics.Metrics, logger *zap.Logger) *Guard {
	return &Guard{
		uow:     uow,
		repo:    repo,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("pkg/idempotency/guard"),
		now:     time.Now,
	}
}

// Handle runs fn at most once per Meta.EventID. The ledger row and fn's
// writes share one transaction, so either both land or neither does.
// It reports whether fn was applied; a skipped duplicate returns (false, nil).
func (g *Guard) Handle(ctx context.Context, meta Meta, fn func(ctx context.Context, tx *db.Tx) error) (bool, error) {
	ctx, span := g.tracer.Start(ctx, "Guard.Handle")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", meta.EventID),
		attribute.String("event_type", meta.EventType),
		attribute.String("aggregate_key", meta.AggregateKey),
	)

	if meta.EventID == "" {
		return false, errors.New("idempotency guard requires an event id")
	}

	exists, err := g.repo.Exists(ctx, meta.EventID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	if exists {
		g.skipped(ctx, meta)
		return false, nil
	}

	err = g.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		if err := g.repo.Insert(ctx, tx, &Record{
			EventID:      meta.EventID,
			EventType:    meta.EventType,
			AggregateKey: meta.AggregateKey,
			Status:       StatusSuccess,
			HandledAt:    g.now().UTC(),
		}); err != nil {
			return err
		}

		return fn(ctx, tx)
	})
	if errors.Is(err, ErrAlreadyHandled) {
		g.skipped(ctx, meta)
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	g.metrics.EventsHandled.WithLabelValues(meta.EventType, string(StatusSuccess)).Inc()

	return true, nil
}

// RecordFailure stores a FAILED ledger row for an event that will never
// succeed, so redeliveries are skipped. It is a no-op if the id is already
// recorded.
func (g *Guard) RecordFailure(ctx context.Context, meta Meta, cause error) error {
	ctx, span := g.tracer.Start(ctx, "Guard.RecordFailure")
	defer span.End()

	lastError := cause.Error()

	err := g.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		return g.repo.Insert(ctx, tx, &Record{
			EventID:      meta.EventID,
			EventType:    meta.EventType,
			AggregateKey: meta.AggregateKey,
			Status:       StatusFailed,
			HandledAt:    g.now().UTC(),
			LastError:    &lastError,
		})
	})
	if err != nil && !errors.Is(err, ErrAlreadyHandled) {
		span.RecordError(err)
		return err
	}

	g.metrics.EventsHandled.WithLabelValues(meta.EventType, string(StatusFailed)).Inc()

	mylogger.Warn(
		ctx,
		g.logger,
		"Event recorded as failed",
		zap.String("event_id", meta.EventID),
		zap.String("event_type", meta.EventType),
		zap.String("aggregate_key", meta.AggregateKey),
		zap.Error(cause),
	)

	return nil
}

func (g *Guard) skipped(ctx context.Context, meta Meta) {
	g.metrics.DuplicateEvents.WithLabelValues(meta.EventType).Inc()

	mylogger.Info(
		ctx,
		g.logger,
		"Event already handled, skipping",
		zap.String("event_id", meta.EventID),
		zap.String("event_type", meta.EventType),
	)
}
