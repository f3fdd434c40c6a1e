package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/consumer"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/event"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/kafka"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"go.uber.org/zap"
)

type Aggregator interface {
	Apply(ctx context.Context, tx *db.Tx, productID int64, delta domain.Delta, occurredAt time.Time) error
}

type RankingEngine interface {
	ApplyDelta(ctx context.Context, productID int64, delta domain.Delta, occurredAt time.Time) error
}

// Consumer turns catalog signals into metric and ranking deltas.
type Consumer struct {
	aggregator Aggregator
	engine     RankingEngine
	processor  *consumer.Processor
	logger     *zap.Logger
}

func NewConsumer(aggregator Aggregator, engine RankingEngine, processor *consumer.Processor, logger *zap.Logger) *Consumer {
	c := &Consumer{
		aggregator: aggregator,
		engine:     engine,
		processor:  processor,
		logger:     logger,
	}

	processor.
		On(generalDomain.TypeLikeAdded, c.handleLikeAdded).
		On(generalDomain.TypeLikeRemoved, c.handleLikeRemoved).
		On(generalDomain.TypeProductViewed, c.handleProductViewed).
		On(generalDomain.TypeStockDecreased, c.handleStockDecreased)

	return c
}

func (c *Consumer) Start(ctx context.Context, brokers []string, groupID string, topics []string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		topics,
		c.processor.Process,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

func (c *Consumer) handleLikeAdded(ctx context.Context, tx *db.Tx, evt event.Event) error {
	e, ok := evt.(generalDomain.LikeAddedEvent)
	if !ok {
		return unexpectedPayload(evt, generalDomain.TypeLikeAdded)
	}

	if e.LikeType != "" && e.LikeType != generalDomain.LikeTypeProduct {
		return nil
	}

	return c.apply(ctx, tx, e.TargetID, domain.Delta{Like: 1}, e.OccurredAt)
}

func (c *Consumer) handleLikeRemoved(ctx context.Context, tx *db.Tx, evt event.Event) error {
	e, ok := evt.(generalDomain.LikeRemovedEvent)
	if !ok {
		return unexpectedPayload(evt, generalDomain.TypeLikeRemoved)
	}

	if e.LikeType != "" && e.LikeType != generalDomain.LikeTypeProduct {
		return nil
	}

	return c.apply(ctx, tx, e.TargetID, domain.Delta{Like: -1}, e.OccurredAt)
}

func (c *Consumer) handleProductViewed(ctx context.Context, tx *db.Tx, evt event.Event) error {
	e, ok := evt.(generalDomain.ProductViewedEvent)
	if !ok {
		return unexpectedPayload(evt, generalDomain.TypeProductViewed)
	}

	return c.apply(ctx, tx, e.ProductID, domain.Delta{View: 1}, e.OccurredAt)
}

// handleStockDecreased counts sales. Only decreases caused by an order are
// sales; damage and loss are not.
func (c *Consumer) handleStockDecreased(ctx context.Context, tx *db.Tx, evt event.Event) error {
	e, ok := evt.(generalDomain.StockDecreasedEvent)
	if !ok {
		return unexpectedPayload(evt, generalDomain.TypeStockDecreased)
	}

	if e.Reason != generalDomain.StockReasonOrder {
		return nil
	}

	return c.apply(ctx, tx, e.ProductID, domain.Delta{Sales: e.Quantity}, e.OccurredAt)
}

func (c *Consumer) apply(ctx context.Context, tx *db.Tx, productID int64, delta domain.Delta, occurredAt time.Time) error {
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	if err := c.aggregator.Apply(ctx, tx, productID, delta, occurredAt); err != nil {
		return err
	}

	tx.AfterCommit("ranking.apply", func(ctx context.Context) error {
		if err := c.engine.ApplyDelta(ctx, productID, delta, occurredAt); err != nil {
			mylogger.Warn(
				ctx,
				c.logger,
				"Failed to update ranking",
				zap.Int64("product_id", productID),
				zap.Error(err),
			)

			return err
		}

		return nil
	})

	return nil
}

// unexpectedPayload is permanent: the registry bound eventType to another
// type, so redelivery cannot help.
func unexpectedPayload(evt event.Event, eventType string) error {
	return apperr.Validation(fmt.Sprintf("unexpected payload %T for %s", evt, eventType))
}
