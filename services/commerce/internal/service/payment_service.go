package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/config"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/event"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/utils"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/client/dataplatform"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/client/pg"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const syncBatchSize = 100

type CallbackCommand struct {
	TransactionKey string `json:"transactionKey" validate:"required"`
	OrderID        int64  `json:"orderId" validate:"gt=0"`
	Status         string `json:"status" validate:"required,oneof=SUCCESS FAILED"`
	Reason         string `json:"reason"`
}

type PaymentService interface {
	// Request asks the gateway to charge the card of a PENDING payment. A
	// gateway failure fails the payment instead of the caller.
	Request(ctx context.Context, orderID int64, card domain.Card) error
	HandleCallback(ctx context.Context, cmd CallbackCommand) error
	// SyncPending asks the gateway about payments stuck in PROCESSING and
	// applies the answers, then resubmits card payments that never reached the
	// gateway. It returns how many payments reached a final state.
	SyncPending(ctx context.Context, olderThan time.Duration) (int, error)
	GetByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error)
}

type paymentService struct {
	uow         *db.UnitOfWork
	paymentRepo repository.PaymentRepository
	gateway     pg.Client
	publisher   event.Publisher
	sender      dataplatform.Sender
	topics      config.Kafka
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewPaymentService(
	uow *db.UnitOfWork,
	paymentRepo repository.PaymentRepository,
	gateway pg.Client,
	publisher event.Publisher,
	sender dataplatform.Sender,
	topics config.Kafka,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		uow:         uow,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		publisher:   publisher,
		sender:      sender,
		topics:      topics,
		logger:      logger,
		tracer:      otel.Tracer("service/payment_service"),
		now:         time.Now,
	}
}

func (s *paymentService) Request(ctx context.Context, orderID int64, card domain.Card) error {
	ctx, span := s.tracer.Start(ctx, "PaymentService.Request")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	payment, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if payment.Status != domain.PaymentStatusPending {
		return nil
	}

	trx, gatewayErr := s.gateway.RequestPayment(ctx, pg.PaymentRequest{
		OrderID:  payment.OrderID,
		UserID:   payment.UserID,
		CardType: card.CardType,
		CardNo:   card.CardNo,
		Amount:   payment.Amount,
	})
	if gatewayErr != nil && ctx.Err() != nil {
		// The payment stays PENDING and is resubmitted by SyncPending.
		return ctx.Err()
	}

	return s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		payment, err := s.paymentRepo.GetByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		// A callback may have settled it meanwhile.
		if payment.Status != domain.PaymentStatusPending {
			return nil
		}

		if gatewayErr != nil {
			span.RecordError(gatewayErr)

			mylogger.Warn(
				ctx,
				s.logger,
				"Card payment failed at the gateway",
				zap.Int64("order_id", orderID),
				zap.Error(gatewayErr),
			)

			return s.settle(ctx, tx, payment, domain.PaymentStatusFailed, gatewayErr.Error())
		}

		if err := payment.StartProcessing(trx.TransactionKey); err != nil {
			return err
		}

		switch trx.Status {
		case pg.TransactionSuccess:
			return s.settle(ctx, tx, payment, domain.PaymentStatusSuccess, trx.Reason)
		case pg.TransactionFailed:
			return s.settle(ctx, tx, payment, domain.PaymentStatusFailed, trx.Reason)
		}

		mylogger.Info(
			ctx,
			s.logger,
			"Card payment accepted by the gateway",
			zap.Int64("order_id", orderID),
			zap.String("transaction_key", trx.TransactionKey),
		)

		return s.paymentRepo.Update(ctx, tx, payment)
	})
}

func (s *paymentService) HandleCallback(ctx context.Context, cmd CallbackCommand) error {
	ctx, span := s.tracer.Start(ctx, "PaymentService.HandleCallback")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", cmd.OrderID),
		attribute.String("transaction_key", cmd.TransactionKey),
		attribute.String("status", cmd.Status),
	)

	if err := utils.Validate(cmd); err != nil {
		return err
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		payment, err := s.paymentRepo.GetByOrderIDForUpdate(ctx, tx, cmd.OrderID)
		if err != nil {
			return err
		}

		if key := payment.Key(); key != "" && key != cmd.TransactionKey {
			return apperr.Conflict(fmt.Sprintf(
				"transaction key %s does not belong to order %d", cmd.TransactionKey, cmd.OrderID,
			))
		}

		target := domain.PaymentStatus(cmd.Status)
		if payment.Status == target {
			mylogger.Info(ctx, s.logger, "Duplicate payment callback, skipping", zap.Int64("order_id", cmd.OrderID))
			return nil
		}

		if payment.TransactionKey == nil {
			payment.TransactionKey = &cmd.TransactionKey
		}

		return s.settle(ctx, tx, payment, target, cmd.Reason)
	})
	if err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Payment callback rejected",
			zap.Int64("order_id", cmd.OrderID),
			zap.String("transaction_key", cmd.TransactionKey),
			zap.Error(err),
		)
	}

	return err
}

func (s *paymentService) SyncPending(ctx context.Context, olderThan time.Duration) (int, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.SyncPending")
	defer span.End()

	cutoff := s.now().Add(-olderThan)

	settled, err := s.syncProcessing(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		return settled, err
	}

	resubmitted, err := s.resubmitPending(ctx, cutoff)
	settled += resubmitted
	if err != nil {
		span.RecordError(err)
		return settled, err
	}

	span.SetAttributes(attribute.Int("settled", settled))

	return settled, nil
}

func (s *paymentService) syncProcessing(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.paymentRepo.ListStale(ctx, domain.PaymentStatusProcessing, cutoff, syncBatchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, payment := range stale {
		trx, err := s.gateway.GetTransaction(ctx, payment.UserID, payment.Key())
		if err != nil {
			if ctx.Err() != nil {
				return settled, ctx.Err()
			}

			mylogger.Warn(
				ctx,
				s.logger,
				"Failed to query transaction",
				zap.Int64("order_id", payment.OrderID),
				zap.String("transaction_key", payment.Key()),
				zap.Error(err),
			)

			continue
		}

		if trx.Status == pg.TransactionPending {
			continue
		}

		err = s.HandleCallback(ctx, CallbackCommand{
			TransactionKey: payment.Key(),
			OrderID:        payment.OrderID,
			Status:         string(trx.Status),
			Reason:         trx.Reason,
		})
		if err != nil && !errors.Is(err, apperr.ErrConflict) {
			return settled, err
		}
		if err == nil {
			settled++
		}
	}

	return settled, nil
}

// resubmitPending handles card payments whose after-commit request never
// ran, e.g. the process stopped right after the order committed. They are
// sent again with the stored card; without card data they fail so the order
// is compensated.
func (s *paymentService) resubmitPending(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.paymentRepo.ListStale(ctx, domain.PaymentStatusPending, cutoff, syncBatchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, payment := range stale {
		if payment.PaymentType != domain.PaymentTypeCard {
			continue
		}

		mylogger.Warn(
			ctx,
			s.logger,
			"Resubmitting card payment that never reached the gateway",
			zap.Int64("order_id", payment.OrderID),
			zap.Time("updated_at", payment.UpdatedAt),
		)

		if payment.CardType == nil || payment.CardNo == nil {
			err = s.failUnsent(ctx, payment.OrderID, "card details missing for resubmission")
		} else {
			err = s.Request(ctx, payment.OrderID, domain.Card{CardType: *payment.CardType, CardNo: *payment.CardNo})
		}
		if err != nil {
			if ctx.Err() != nil {
				return settled, ctx.Err()
			}

			mylogger.Error(
				ctx,
				s.logger,
				"Failed to resubmit pending payment",
				zap.Int64("order_id", payment.OrderID),
				zap.Error(err),
			)

			continue
		}

		current, getErr := s.paymentRepo.GetByOrderID(ctx, payment.OrderID)
		if getErr != nil {
			return settled, getErr
		}
		if current.Status.Terminal() {
			settled++
		}
	}

	return settled, nil
}

func (s *paymentService) failUnsent(ctx context.Context, orderID int64, reason string) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		payment, err := s.paymentRepo.GetByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if payment.Status != domain.PaymentStatusPending {
			return nil
		}

		return s.settle(ctx, tx, payment, domain.PaymentStatusFailed, reason)
	})
}

func (s *paymentService) GetByOrderID(ctx context.Context, orderID int64) (*domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.GetByOrderID")
	defer span.End()

	return s.paymentRepo.GetByOrderID(ctx, orderID)
}

// settle moves payment to a final state, stores it and schedules the
// matching payment event for after the commit.
func (s *paymentService) settle(ctx context.Context, tx *db.Tx, payment *domain.Payment, target domain.PaymentStatus, reason string) error {
	var (
		err error
		evt event.Event
	)

	now := s.now().UTC()

	switch target {
	case domain.PaymentStatusSuccess:
		err = payment.Succeed()
		evt = generalDomain.PaymentSuccessEvent{
			OrderID:        payment.OrderID,
			UserID:         payment.UserID,
			TransactionKey: payment.Key(),
			Amount:         payment.Amount,
			Status:         string(target),
			ProcessedAt:    now,
		}
	case domain.PaymentStatusFailed:
		err = payment.Fail(reason)
		evt = generalDomain.PaymentFailureEvent{
			OrderID:        payment.OrderID,
			UserID:         payment.UserID,
			TransactionKey: payment.Key(),
			Amount:         payment.Amount,
			Reason:         reason,
			ProcessedAt:    now,
		}
	default:
		return apperr.Validation(fmt.Sprintf("unsupported payment status %q", target))
	}
	if err != nil {
		return err
	}

	if err := s.paymentRepo.Update(ctx, tx, payment); err != nil {
		return err
	}

	s.publisher.PublishAfterCommit(tx, s.topics.PaymentTopic, orderKey(payment.OrderID), evt)

	settled := *payment
	tx.AfterCommit("dataplatform.payment", func(ctx context.Context) error {
		return s.sender.SendPaymentResult(ctx, &settled)
	})

	mylogger.Info(
		ctx,
		s.logger,
		"Payment settled",
		zap.Int64("order_id", payment.OrderID),
		zap.String("status", string(payment.Status)),
		zap.String("transaction_key", payment.Key()),
	)

	return nil
}
