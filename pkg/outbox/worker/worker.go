package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/kafka"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/outbox/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type MessageSender interface {
	Send(ctx context.Context, msg kafka.Message) error
}

// OutboxProcessor re-sends envelopes whose after-commit publish failed.
// The stored bytes are sent unchanged, so consumers see the original eventId.
type OutboxProcessor struct {
	pool      *pgxpool.Pool
	repo      repository.OutboxRepository
	sender    MessageSender
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
}

func NewOutboxProcessor(
	pool *pgxpool.Pool,
	repo repository.OutboxRepository,
	sender MessageSender,
	logger *zap.Logger,
	batchSize int,
	interval time.Duration,
) *OutboxProcessor {
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	return &OutboxProcessor{
		pool:      pool,
		repo:      repo,
		sender:    sender,
		logger:    logger,
		batchSize: batchSize,
		interval:  interval,
		tracer:    otel.Tracer("outbox-worker"),
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		p.logger,
		"Starting outbox processor",
		zap.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(
				ctx,
				p.logger,
				"Outbox processor stopping",
			)

			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				mylogger.Error(
					ctx,
					p.logger,
					"Error processing outbox batch",
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessBatch sends one batch and returns how many rows were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				p.logger,
				"Outbox worker failed to rollback transaction",
				zap.Error(err),
			)
		}
	}()

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	published := 0
	for _, event := range events {
		err := p.sender.Send(ctx, kafka.Message{
			Topic: event.Topic,
			Key:   event.MessageKey,
			Value: event.Payload,
		})
		if err != nil {
			mylogger.Warn(
				ctx,
				p.logger,
				"Outbox worker produce message failed",
				zap.Int64("id", event.Id),
				zap.String("event_id", event.EventID),
				zap.Int64("attempts", event.Attempts+1),
				zap.Error(err),
			)

			if dbErr := p.repo.MarkEventFailed(ctx, tx, event.Id, err.Error()); dbErr != nil {
				return published, fmt.Errorf("failed to mark outbox event %d failed: %w", event.Id, dbErr)
			}

			continue
		}

		if err := p.repo.MarkEventPublished(ctx, tx, event.Id); err != nil {
			return published, fmt.Errorf("failed to mark outbox event %d published: %w", event.Id, err)
		}

		published++
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to commit outbox batch: %w", err)
	}

	mylogger.Info(
		ctx,
		p.logger,
		"Outbox batch processed",
		zap.Int("count", len(events)),
		zap.Int("published", published),
	)

	return published, nil
}
