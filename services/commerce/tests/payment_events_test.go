package tests

import (
	"strconv"
	"time"

	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
)

func (s *IntegrationTestSuite) placePointOrder(userID, productID, quantity int64) *domain.Order {
	order, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID:      userID,
		Items:       []service.OrderLine{{ProductID: productID, Quantity: quantity}},
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().NoError(err)

	return order
}

func (s *IntegrationTestSuite) orderStatus(userID, orderID int64) domain.OrderStatus {
	order, err := s.OrderService.GetOrder(s.Ctx, userID, orderID)
	s.Require().NoError(err)

	return order.Status
}

func (s *IntegrationTestSuite) failureOf(order *domain.Order, reason string) generalDomain.PaymentFailureEvent {
	return generalDomain.PaymentFailureEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Amount:      order.FinalPrice,
		Reason:      reason,
		ProcessedAt: time.Now(),
	}
}

func (s *IntegrationTestSuite) TestPaymentSuccess_CompletesOrder() {
	userID := s.seedUser(50_000)
	productID := s.seedProduct(10_000, 10)
	order := s.placePointOrder(userID, productID, 1)

	paid := s.Publisher.OfType(generalDomain.TypePaymentSuccess)
	s.Require().Len(paid, 1)

	key := strconv.FormatInt(order.ID, 10)
	s.Require().NoError(s.deliver(paid[0].Event, key))
	s.Equal(domain.OrderStatusPaid, s.orderStatus(userID, order.ID))

	// a second success with a fresh event id is a no-op
	s.Require().NoError(s.deliver(paid[0].Event, key))
	s.Equal(domain.OrderStatusPaid, s.orderStatus(userID, order.ID))
	s.Empty(s.DLT.sent)
}

func (s *IntegrationTestSuite) TestPaymentSuccess_DuplicateDeliveryAppliedOnce() {
	userID := s.seedUser(50_000)
	productID := s.seedProduct(10_000, 10)
	order := s.placePointOrder(userID, productID, 1)

	value := s.envelope(s.failureOf(order, "limit exceeded"))
	key := strconv.FormatInt(order.ID, 10)

	s.Require().NoError(s.process(key, value))
	s.Require().NoError(s.process(key, value))

	s.Equal(domain.OrderStatusCancelled, s.orderStatus(userID, order.ID))
	s.Equal(int64(10), s.stockOf(productID))
	s.Equal(int64(50_000), s.balanceOf(userID))
	s.Len(s.Publisher.OfType(generalDomain.TypeStockIncreased), 1)
	s.Equal(1, s.countRows("event_handled"))
}

func (s *IntegrationTestSuite) TestPaymentFailure_Compensates() {
	userID := s.seedUser(50_000)
	productID := s.seedProduct(10_000, 10)
	order := s.placePointOrder(userID, productID, 3)

	s.Equal(int64(7), s.stockOf(productID))
	s.Equal(int64(20_000), s.balanceOf(userID))

	s.Require().NoError(s.deliver(s.failureOf(order, "card declined"), strconv.FormatInt(order.ID, 10)))

	cancelled, err := s.OrderService.GetOrder(s.Ctx, userID, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, cancelled.Status)
	s.Require().NotNil(cancelled.CancelReason)
	s.Equal("card declined", *cancelled.CancelReason)

	s.Equal(int64(10), s.stockOf(productID))
	s.Equal(int64(50_000), s.balanceOf(userID))

	increased := s.Publisher.OfType(generalDomain.TypeStockIncreased)
	s.Require().Len(increased, 1)
	evt := increased[0].Event.(generalDomain.StockIncreasedEvent)
	s.Equal(generalDomain.StockReasonCancel, evt.Reason)
	s.Equal(int64(7), evt.PreviousStock)
	s.Equal(int64(10), evt.CurrentStock)
	s.Equal(topics.CatalogTopic, increased[0].Topic)
}

func (s *IntegrationTestSuite) TestPaymentFailure_KeepsCouponUsed() {
	userID := s.seedUser(50_000)
	productID := s.seedProduct(10_000, 10)
	couponID := s.seedCoupon(userID, domain.DiscountTypeFixed, 1_000, domain.UserCouponAvailable, time.Now().Add(time.Hour))

	order, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID:      userID,
		Items:       []service.OrderLine{{ProductID: productID, Quantity: 1}},
		CouponID:    &couponID,
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().NoError(err)

	s.Require().NoError(s.deliver(s.failureOf(order, "declined"), strconv.FormatInt(order.ID, 10)))

	s.Equal(int64(50_000), s.balanceOf(userID))
	s.Equal(domain.UserCouponUsed, s.couponStatus(userID, couponID))
}

func (s *IntegrationTestSuite) TestPaymentSuccess_AfterCancelIsDeadLettered() {
	userID := s.seedUser(50_000)
	productID := s.seedProduct(10_000, 10)
	order := s.placePointOrder(userID, productID, 1)
	key := strconv.FormatInt(order.ID, 10)

	s.Require().NoError(s.deliver(s.failureOf(order, "declined"), key))

	paid := s.Publisher.OfType(generalDomain.TypePaymentSuccess)
	s.Require().Len(paid, 1)

	// permanent failures are acknowledged after being dead-lettered
	s.Require().NoError(s.deliver(paid[0].Event, key))

	s.Equal(domain.OrderStatusCancelled, s.orderStatus(userID, order.ID))
	s.Len(s.DLT.sent, 1)

	var failed int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `
		SELECT COUNT(*) FROM event_handled WHERE status = 'FAILED'
	`).Scan(&failed))
	s.Equal(1, failed)
}

func (s *IntegrationTestSuite) TestOrderLifecycle() {
	userID := s.seedUser(50_000)
	productID := s.seedProduct(10_000, 10)
	order := s.placePointOrder(userID, productID, 1)

	s.Require().ErrorIs(s.OrderService.ShipOrder(s.Ctx, order.ID), domain.ErrInvalidTransition)

	paid := s.Publisher.OfType(generalDomain.TypePaymentSuccess)
	s.Require().Len(paid, 1)
	s.Require().NoError(s.deliver(paid[0].Event, strconv.FormatInt(order.ID, 10)))

	s.Require().NoError(s.OrderService.ShipOrder(s.Ctx, order.ID))
	s.Require().NoError(s.OrderService.DeliverOrder(s.Ctx, order.ID))
	s.Equal(domain.OrderStatusDelivered, s.orderStatus(userID, order.ID))

	s.Require().ErrorIs(s.OrderService.DeliverOrder(s.Ctx, order.ID), domain.ErrInvalidTransition)
}

func (s *IntegrationTestSuite) TestGetOrder_OtherUser() {
	userID := s.seedUser(50_000)
	other := s.seedUser(0)
	productID := s.seedProduct(10_000, 10)
	order := s.placePointOrder(userID, productID, 1)

	_, err := s.OrderService.GetOrder(s.Ctx, other, order.ID)
	s.Require().ErrorIs(err, repository.ErrOrderNotFound)
}
