package event

import (
	"context"
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/kafka"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/metrics"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	outboxDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/outbox/domain"
	outboxRepository "github.com/KBroJ/LoopPak-BE-sub001/pkg/outbox/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Publisher interface {
	// Publish sends event synchronously and returns once the brokers acked it.
	Publish(ctx context.Context, topic, key string, event Event) error
	// PublishAfterCommit defers the publish until tx has committed. A failed
	// publish is parked in the outbox instead of failing the caller.
	PublishAfterCommit(tx *db.Tx, topic, key string, event Event)
}

type kafkaPublisher struct {
	producer   kafka.Producer
	uow        *db.UnitOfWork
	outboxRepo outboxRepository.OutboxRepository
	metrics    *metrics.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewPublisher(
	producer kafka.Producer,
	uow *db.UnitOfWork,
	outboxRepo outboxRepository.OutboxRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) Publisher {
	return &kafkaPublisher{
		producer:   producer,
		uow:        uow,
		outboxRepo: outboxRepo,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("pkg/event/publisher"),
		now:        time.Now,
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic, key string, event Event) error {
	env, err := NewEnvelope(event, p.now())
	if err != nil {
		return err
	}

	return p.send(ctx, topic, key, env)
}

func (p *kafkaPublisher) PublishAfterCommit(tx *db.Tx, topic, key string, event Event) {
	tx.AfterCommit("publish "+event.EventType(), func(ctx context.Context) error {
		env, err := NewEnvelope(event, p.now())
		if err != nil {
			return err
		}

		sendErr := p.send(ctx, topic, key, env)
		if sendErr == nil {
			return nil
		}

		p.metrics.PublishFailures.WithLabelValues(topic, env.EventType).Inc()

		mylogger.Error(
			ctx,
			p.logger,
			"After-commit publish failed, parking envelope in outbox",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.String("event_type", env.EventType),
			zap.String("event_id", env.EventID),
			zap.Error(sendErr),
		)

		if err := p.park(ctx, topic, key, env, sendErr); err != nil {
			return fmt.Errorf("publish failed (%v) and outbox save failed: %w", sendErr, err)
		}

		return nil
	})
}

func (p *kafkaPublisher) send(ctx context.Context, topic, key string, env Envelope) error {
	ctx, span := p.tracer.Start(ctx, "Publisher.Publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("event.type", env.EventType),
		attribute.String("event.id", env.EventID),
		attribute.String("messaging.destination", topic),
		attribute.String("messaging.kafka.message_key", key),
	)

	value, err := env.Marshal()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := p.producer.Send(ctx, kafka.Message{Topic: topic, Key: key, Value: value}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish %s to %s: %w", env.EventType, topic, err)
	}

	return nil
}

func (p *kafkaPublisher) park(ctx context.Context, topic, key string, env Envelope, cause error) error {
	value, err := env.Marshal()
	if err != nil {
		return err
	}

	lastError := cause.Error()

	return p.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		return p.outboxRepo.SaveOutboxEvent(ctx, tx, &outboxDomain.OutboxEvent{
			AggregateType: topic,
			AggregateID:   key,
			EventType:     env.EventType,
			EventID:       env.EventID,
			Topic:         topic,
			MessageKey:    key,
			Payload:       value,
			LastError:     &lastError,
		})
	})
}
