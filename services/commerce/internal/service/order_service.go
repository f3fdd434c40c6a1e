package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/cache"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/config"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/event"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/utils"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/client/dataplatform"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderLine struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int64 `json:"quantity" validate:"gt=0"`
}

type PlaceOrderCommand struct {
	UserID        int64        `json:"-" validate:"gt=0"`
	Items         []OrderLine  `json:"items" validate:"required,min=1,dive"`
	CouponID      *int64       `json:"couponId" validate:"omitempty,gt=0"`
	PaymentType   string       `json:"paymentType" validate:"required,oneof=POINT CARD"`
	PaymentMethod string       `json:"paymentMethod"`
	Card          *domain.Card `json:"card" validate:"omitempty"`
}

type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error)
	// HandlePaymentSuccess and HandlePaymentFailure run in the transaction
	// that also records the payment event as handled.
	HandlePaymentSuccess(ctx context.Context, tx *db.Tx, event generalDomain.PaymentSuccessEvent) error
	HandlePaymentFailure(ctx context.Context, tx *db.Tx, event generalDomain.PaymentFailureEvent) error
	GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	ShipOrder(ctx context.Context, orderID int64) error
	DeliverOrder(ctx context.Context, orderID int64) error
}

type orderService struct {
	uow            *db.UnitOfWork
	orderRepo      repository.OrderRepository
	productRepo    repository.ProductRepository
	paymentRepo    repository.PaymentRepository
	pointService   PointService
	couponService  CouponService
	paymentService PaymentService
	publisher      event.Publisher
	evictor        cache.Evictor
	sender         dataplatform.Sender
	topics         config.Kafka
	logger         *zap.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

func NewOrderService(
	uow *db.UnitOfWork,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	paymentRepo repository.PaymentRepository,
	pointService PointService,
	couponService CouponService,
	paymentService PaymentService,
	publisher event.Publisher,
	evictor cache.Evictor,
	sender dataplatform.Sender,
	topics config.Kafka,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		uow:            uow,
		orderRepo:      orderRepo,
		productRepo:    productRepo,
		paymentRepo:    paymentRepo,
		pointService:   pointService,
		couponService:  couponService,
		paymentService: paymentService,
		publisher:      publisher,
		evictor:        evictor,
		sender:         sender,
		topics:         topics,
		logger:         logger,
		tracer:         otel.Tracer("service/order_service"),
		now:            time.Now,
	}
}

// PlaceOrder reserves stock and points, stores the order with its payment
// and consumes the coupon, all in one transaction. Events, the card payment
// request and analytics dispatch run only after that transaction commits.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", cmd.UserID),
		attribute.Int("lines", len(cmd.Items)),
		attribute.String("payment_type", cmd.PaymentType),
	)

	if err := utils.Validate(cmd); err != nil {
		return nil, err
	}
	if domain.PaymentType(cmd.PaymentType) == domain.PaymentTypeCard && cmd.Card == nil {
		return nil, domain.ErrMissingCard
	}

	lines := mergeLines(cmd.Items)

	var order *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		changes := make([]*domain.StockChange, 0, len(lines))
		for _, line := range lockOrder(lines) {
			change, err := s.productRepo.DecreaseStock(ctx, tx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}

			changes = append(changes, change)
		}

		byProduct := lo.KeyBy(changes, func(c *domain.StockChange) int64 { return c.ProductID })
		items := lo.Map(lines, func(line OrderLine, _ int) domain.OrderItem {
			return domain.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     byProduct[line.ProductID].Price,
			}
		})

		var err error
		order, err = domain.NewOrder(cmd.UserID, items, domain.PaymentType(cmd.PaymentType), cmd.PaymentMethod)
		if err != nil {
			return err
		}

		if cmd.CouponID != nil {
			discount, err := s.couponService.Quote(ctx, tx, cmd.UserID, *cmd.CouponID, order.TotalPrice)
			if err != nil {
				return err
			}

			order.ApplyDiscount(*cmd.CouponID, discount)
		}

		if order.PaymentType == domain.PaymentTypePoint && order.FinalPrice > 0 {
			if err := s.pointService.Use(ctx, tx, cmd.UserID, order.FinalPrice); err != nil {
				return err
			}

			order.UsedPoints = order.FinalPrice
		}

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return err
		}

		payment := domain.NewPaymentFor(order, cmd.Card)
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return err
		}

		if cmd.CouponID != nil {
			couponID := *cmd.CouponID
			tx.BeforeCommit("coupon.use", func(ctx context.Context, tx *db.Tx) error {
				return s.couponService.OnOrderPlaced(ctx, tx, cmd.UserID, couponID)
			})
		}

		s.registerPlacementEffects(tx, order, payment, changes, cmd.Card)

		return nil
	})
	if err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Order placement failed",
			zap.Int64("user_id", cmd.UserID),
			zap.Error(err),
		)

		return nil, err
	}

	span.SetAttributes(attribute.Int64("order_id", order.ID))

	mylogger.Info(
		ctx,
		s.logger,
		"Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("final_price", order.FinalPrice),
		zap.String("payment_type", string(order.PaymentType)),
	)

	return order, nil
}

func (s *orderService) registerPlacementEffects(
	tx *db.Tx,
	order *domain.Order,
	payment *domain.Payment,
	changes []*domain.StockChange,
	card *domain.Card,
) {
	now := s.now().UTC()

	s.publisher.PublishAfterCommit(tx, s.topics.OrderTopic, orderKey(order.ID), generalDomain.OrderCreatedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		CouponID:      order.CouponID,
		FinalPrice:    order.FinalPrice,
		PaymentType:   string(order.PaymentType),
		PaymentMethod: order.PaymentMethod,
		OccurredAt:    now,
	})

	for _, change := range changes {
		s.publisher.PublishAfterCommit(tx, s.topics.CatalogTopic, productKey(change.ProductID), generalDomain.StockDecreasedEvent{
			ProductID:     change.ProductID,
			PreviousStock: change.PreviousStock,
			CurrentStock:  change.CurrentStock,
			Quantity:      change.Quantity,
			Reason:        generalDomain.StockReasonOrder,
			OccurredAt:    now,
		})
	}

	evictProductsAfterCommit(tx, s.evictor, lo.Map(changes, func(c *domain.StockChange, _ int) int64 {
		return c.ProductID
	})...)

	switch order.PaymentType {
	case domain.PaymentTypePoint:
		s.publisher.PublishAfterCommit(tx, s.topics.PaymentTopic, orderKey(order.ID), generalDomain.PaymentSuccessEvent{
			OrderID:        order.ID,
			UserID:         order.UserID,
			TransactionKey: payment.Key(),
			Amount:         payment.Amount,
			Status:         string(payment.Status),
			ProcessedAt:    now,
		})
	case domain.PaymentTypeCard:
		cardCopy := *card
		tx.AfterCommit("payment.request", func(ctx context.Context) error {
			return s.paymentService.Request(ctx, order.ID, cardCopy)
		})
	}

	tx.AfterCommit("dataplatform.order", func(ctx context.Context) error {
		return s.sender.SendOrderPlaced(ctx, order)
	})
}

// mergeLines folds repeated products together, keeping the position of each
// product's first line.
func mergeLines(lines []OrderLine) []OrderLine {
	quantities := make(map[int64]int64, len(lines))
	for _, l := range lines {
		quantities[l.ProductID] += l.Quantity
	}

	productIDs := lo.Uniq(lo.Map(lines, func(l OrderLine, _ int) int64 { return l.ProductID }))

	return lo.Map(productIDs, func(productID int64, _ int) OrderLine {
		return OrderLine{ProductID: productID, Quantity: quantities[productID]}
	})
}

// lockOrder sorts a copy of lines by product id so concurrent placements
// lock stock rows in the same order.
func lockOrder(lines []OrderLine) []OrderLine {
	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b OrderLine) int { return cmp.Compare(a.ProductID, b.ProductID) })

	return sorted
}

func (s *orderService) HandlePaymentSuccess(ctx context.Context, tx *db.Tx, event generalDomain.PaymentSuccessEvent) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandlePaymentSuccess")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", event.OrderID))

	order, err := s.orderRepo.GetForUpdate(ctx, tx, event.OrderID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	switch order.Status {
	case domain.OrderStatusPaid, domain.OrderStatusShipped, domain.OrderStatusDelivered:
		mylogger.Info(
			ctx,
			s.logger,
			"Order already paid, skipping",
			zap.Int64("order_id", order.ID),
			zap.String("status", string(order.Status)),
		)

		return nil
	}

	if err := order.Complete(); err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Payment succeeded for an order that cannot be completed",
			zap.Int64("order_id", order.ID),
			zap.String("status", string(order.Status)),
			zap.String("transaction_key", event.TransactionKey),
		)

		return err
	}

	if err := s.orderRepo.UpdateStatus(ctx, tx, order); err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order paid",
		zap.Int64("order_id", order.ID),
		zap.String("transaction_key", event.TransactionKey),
	)

	return nil
}

// HandlePaymentFailure cancels the order and compensates the placement:
// stock goes back and used points are refunded. The coupon stays used.
func (s *orderService) HandlePaymentFailure(ctx context.Context, tx *db.Tx, event generalDomain.PaymentFailureEvent) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandlePaymentFailure")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", event.OrderID))

	order, err := s.orderRepo.GetForUpdate(ctx, tx, event.OrderID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if order.Status == domain.OrderStatusCancelled {
		mylogger.Info(ctx, s.logger, "Order already cancelled, skipping", zap.Int64("order_id", order.ID))
		return nil
	}

	if err := order.Cancel(event.Reason); err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.orderRepo.UpdateStatus(ctx, tx, order); err != nil {
		return err
	}

	now := s.now().UTC()
	productIDs := make([]int64, 0, len(order.Items))

	for _, item := range order.Items {
		change, err := s.productRepo.IncreaseStock(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to restore stock of product %d: %w", item.ProductID, err)
		}

		productIDs = append(productIDs, item.ProductID)

		s.publisher.PublishAfterCommit(tx, s.topics.CatalogTopic, productKey(item.ProductID), generalDomain.StockIncreasedEvent{
			ProductID:     change.ProductID,
			PreviousStock: change.PreviousStock,
			CurrentStock:  change.CurrentStock,
			Quantity:      change.Quantity,
			Reason:        generalDomain.StockReasonCancel,
			OccurredAt:    now,
		})
	}

	if order.UsedPoints > 0 {
		if err := s.pointService.Refund(ctx, tx, order.UserID, order.UsedPoints); err != nil {
			return fmt.Errorf("failed to refund points of order %d: %w", order.ID, err)
		}
	}

	evictProductsAfterCommit(tx, s.evictor, productIDs...)

	mylogger.Info(
		ctx,
		s.logger,
		"Order cancelled and compensated",
		zap.Int64("order_id", order.ID),
		zap.String("reason", event.Reason),
		zap.Int64("refunded_points", order.UsedPoints),
	)

	return nil
}

func (s *orderService) GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}

	return order, nil
}

func (s *orderService) ShipOrder(ctx context.Context, orderID int64) error {
	return s.transition(ctx, "OrderService.ShipOrder", orderID, (*domain.Order).Ship)
}

func (s *orderService) DeliverOrder(ctx context.Context, orderID int64) error {
	return s.transition(ctx, "OrderService.DeliverOrder", orderID, (*domain.Order).Deliver)
}

func (s *orderService) transition(ctx context.Context, spanName string, orderID int64, step func(*domain.Order) error) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	err := s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		order, err := s.orderRepo.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if err := step(order); err != nil {
			return err
		}

		return s.orderRepo.UpdateStatus(ctx, tx, order)
	})
	if err != nil && !errors.Is(err, repository.ErrOrderNotFound) {
		span.RecordError(err)
	}

	return err
}
