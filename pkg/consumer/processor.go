// Package consumer turns raw Kafka messages into guarded, exactly-once
// handler calls.
package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/event"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/idempotency"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/kafka"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"go.uber.org/zap"
)

// Handler applies one decoded event inside the ledger transaction.
type Handler func(ctx context.Context, tx *db.Tx, evt event.Event) error

type Guard interface {
	Handle(ctx context.Context, meta idempotency.Meta, fn func(ctx context.Context, tx *db.Tx) error) (bool, error)
	RecordFailure(ctx context.Context, meta idempotency.Meta, cause error) error
}

type Processor struct {
	registry *event.Registry
	guard    Guard
	dlt      kafka.DeadLetterSink
	handlers map[string]Handler
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewProcessor(
	registry *event.Registry,
	guard Guard,
	dlt kafka.DeadLetterSink,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		registry: registry,
		guard:    guard,
		dlt:      dlt,
		handlers: make(map[string]Handler),
		metrics:  m,
		logger:   logger,
	}
}

// On routes eventType to h. Events without a route are acknowledged untouched.
func (p *Processor) On(eventType string, h Handler) *Processor {
	p.handlers[eventType] = h
	return p
}

// IsPermanent reports failures a redelivery cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, apperr.ErrValidation) ||
		errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrConflict) ||
		errors.Is(err, apperr.ErrConcurrencyConflict)
}

// Process is a kafka.HandlerFunc. A nil return acknowledges the message;
// an error leaves it for redelivery.
func (p *Processor) Process(ctx context.Context, msg *sarama.ConsumerMessage) error {
	env, evt, err := p.registry.Decode(msg.Value)
	if errors.Is(err, event.ErrUnknownEventType) {
		mylogger.Warn(
			ctx,
			p.logger,
			"Skipping message of unknown event type",
			zap.String("topic", msg.Topic),
			zap.String("event_type", env.EventType),
		)

		return nil
	}

	meta := idempotency.Meta{
		EventID:      env.EventID,
		EventType:    env.EventType,
		AggregateKey: string(msg.Key),
	}
	if meta.EventID == "" {
		meta.EventID = idempotency.FallbackEventID(msg.Topic, msg.Partition, msg.Offset)
	}

	if err != nil {
		if meta.EventType == "" {
			meta.EventType = "undecodable"
		}

		return p.reject(ctx, msg, meta, fmt.Errorf("%w: %w", apperr.ErrValidation, err))
	}

	handler, ok := p.handlers[env.EventType]
	if !ok {
		mylogger.Debug(ctx, p.logger, "No handler for event, acknowledging", zap.String("event_type", env.EventType))
		return nil
	}

	_, err = p.guard.Handle(ctx, meta, func(ctx context.Context, tx *db.Tx) error {
		return handler(ctx, tx, evt)
	})
	if err == nil {
		return nil
	}

	if IsPermanent(err) {
		return p.reject(ctx, msg, meta, err)
	}

	return err
}

// reject dead-letters msg, records the failure in the ledger and lets the
// caller acknowledge it.
func (p *Processor) reject(ctx context.Context, msg *sarama.ConsumerMessage, meta idempotency.Meta, cause error) error {
	if err := p.dlt.Send(ctx, msg, cause); err != nil {
		return fmt.Errorf("failed to dead-letter %s: %w", meta.EventID, err)
	}

	p.metrics.DeadLetters.WithLabelValues(msg.Topic, meta.EventType).Inc()

	mylogger.Alert(
		ctx,
		p.logger,
		"Event dead-lettered",
		zap.String("topic", msg.Topic),
		zap.String("event_id", meta.EventID),
		zap.String("event_type", meta.EventType),
		zap.String("aggregate_key", meta.AggregateKey),
		zap.Error(cause),
	)

	return p.guard.RecordFailure(ctx, meta, cause)
}
