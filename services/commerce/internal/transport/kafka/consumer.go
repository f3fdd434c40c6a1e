package kafka

import (
	"context"
	"fmt"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/consumer"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/event"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/kafka"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
	"go.uber.org/zap"
)

// Consumer feeds payment outcomes back into the order saga.
type Consumer struct {
	service   service.OrderService
	processor *consumer.Processor
	logger    *zap.Logger
}

func NewConsumer(service service.OrderService, processor *consumer.Processor, logger *zap.Logger) *Consumer {
	c := &Consumer{
		service:   service,
		processor: processor,
		logger:    logger,
	}

	processor.
		On(generalDomain.TypePaymentSuccess, c.handlePaymentSuccess).
		On(generalDomain.TypePaymentFailure, c.handlePaymentFailure)

	return c
}

func (c *Consumer) Start(ctx context.Context, brokers []string, groupID, topic string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		[]string{topic},
		c.processor.Process,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

func (c *Consumer) handlePaymentSuccess(ctx context.Context, tx *db.Tx, evt event.Event) error {
	e, ok := evt.(generalDomain.PaymentSuccessEvent)
	if !ok {
		return apperr.Validation(fmt.Sprintf("unexpected payload %T for %s", evt, generalDomain.TypePaymentSuccess))
	}

	mylogger.Info(
		ctx,
		c.logger,
		"Processing payment success",
		zap.Int64("order_id", e.OrderID),
		zap.String("transaction_key", e.TransactionKey),
	)

	return c.service.HandlePaymentSuccess(ctx, tx, e)
}

func (c *Consumer) handlePaymentFailure(ctx context.Context, tx *db.Tx, evt event.Event) error {
	e, ok := evt.(generalDomain.PaymentFailureEvent)
	if !ok {
		return apperr.Validation(fmt.Sprintf("unexpected payload %T for %s", evt, generalDomain.TypePaymentFailure))
	}

	mylogger.Info(
		ctx,
		c.logger,
		"Processing payment failure",
		zap.Int64("order_id", e.OrderID),
		zap.String("reason", e.Reason),
	)

	return c.service.HandlePaymentFailure(ctx, tx, e)
}
