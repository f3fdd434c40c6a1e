package tests

import (
	"strconv"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/client/pg"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
)

var testCard = domain.Card{CardType: "SAMSUNG", CardNo: "1234-5678-9814-1451"}

func (s *IntegrationTestSuite) placeCardOrder(userID, productID int64) *domain.Order {
	card := testCard

	order, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID:        userID,
		Items:         []service.OrderLine{{ProductID: productID, Quantity: 2}},
		PaymentType:   string(domain.PaymentTypeCard),
		PaymentMethod: card.CardType,
		Card:          &card,
	})
	s.Require().NoError(err)

	return order
}

func (s *IntegrationTestSuite) paymentOf(orderID int64) *domain.Payment {
	payment, err := s.PaymentService.GetByOrderID(s.Ctx, orderID)
	s.Require().NoError(err)

	return payment
}

func (s *IntegrationTestSuite) TestCardPayment_AcceptedThenCallback() {
	s.Gateway.trx = &pg.Transaction{TransactionKey: "20250816:TR:9577c5", Status: pg.TransactionPending}

	userID := s.seedUser(0)
	productID := s.seedProduct(5_000, 10)
	order := s.placeCardOrder(userID, productID)

	s.Require().Len(s.Gateway.requests, 1)
	s.Equal(int64(10_000), s.Gateway.requests[0].Amount)
	s.Equal(testCard.CardNo, s.Gateway.requests[0].CardNo)

	payment := s.paymentOf(order.ID)
	s.Equal(domain.PaymentStatusProcessing, payment.Status)
	s.Equal("20250816:TR:9577c5", payment.Key())
	s.Empty(s.Publisher.OfType(generalDomain.TypePaymentSuccess))

	callback := service.CallbackCommand{
		TransactionKey: "20250816:TR:9577c5",
		OrderID:        order.ID,
		Status:         string(domain.PaymentStatusSuccess),
	}
	s.Require().NoError(s.PaymentService.HandleCallback(s.Ctx, callback))
	s.Require().NoError(s.PaymentService.HandleCallback(s.Ctx, callback))

	s.Equal(domain.PaymentStatusSuccess, s.paymentOf(order.ID).Status)

	paid := s.Publisher.OfType(generalDomain.TypePaymentSuccess)
	s.Require().Len(paid, 1)
	s.Equal(strconv.FormatInt(order.ID, 10), paid[0].Key)

	s.Require().NoError(s.deliver(paid[0].Event, paid[0].Key))
	s.Equal(domain.OrderStatusPaid, s.orderStatus(userID, order.ID))
}

func (s *IntegrationTestSuite) TestCardPayment_CallbackWithForeignKey() {
	s.Gateway.trx = &pg.Transaction{TransactionKey: "TR-1", Status: pg.TransactionPending}

	userID := s.seedUser(0)
	productID := s.seedProduct(5_000, 10)
	order := s.placeCardOrder(userID, productID)

	err := s.PaymentService.HandleCallback(s.Ctx, service.CallbackCommand{
		TransactionKey: "TR-2",
		OrderID:        order.ID,
		Status:         string(domain.PaymentStatusSuccess),
	})
	s.Require().ErrorIs(err, apperr.ErrConflict)
	s.Equal(domain.PaymentStatusProcessing, s.paymentOf(order.ID).Status)
}

func (s *IntegrationTestSuite) TestCardPayment_GatewayFailureCancelsOrder() {
	s.Gateway.err = pg.ErrTransient

	userID := s.seedUser(0)
	productID := s.seedProduct(5_000, 10)
	order := s.placeCardOrder(userID, productID)

	s.Equal(int64(8), s.stockOf(productID))

	payment := s.paymentOf(order.ID)
	s.Equal(domain.PaymentStatusFailed, payment.Status)
	s.Require().NotNil(payment.Reason)

	failed := s.Publisher.OfType(generalDomain.TypePaymentFailure)
	s.Require().Len(failed, 1)
	s.Equal(topics.PaymentTopic, failed[0].Topic)

	s.Require().NoError(s.deliver(failed[0].Event, failed[0].Key))

	s.Equal(domain.OrderStatusCancelled, s.orderStatus(userID, order.ID))
	s.Equal(int64(10), s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestCardPayment_DeclinedSynchronously() {
	s.Gateway.trx = &pg.Transaction{TransactionKey: "TR-3", Status: pg.TransactionFailed, Reason: "limit exceeded"}

	userID := s.seedUser(0)
	productID := s.seedProduct(5_000, 10)
	order := s.placeCardOrder(userID, productID)

	payment := s.paymentOf(order.ID)
	s.Equal(domain.PaymentStatusFailed, payment.Status)
	s.Equal("TR-3", payment.Key())

	failed := s.Publisher.OfType(generalDomain.TypePaymentFailure)
	s.Require().Len(failed, 1)
	s.Equal("limit exceeded", failed[0].Event.(generalDomain.PaymentFailureEvent).Reason)
}

func (s *IntegrationTestSuite) TestSyncPending_SettlesFromGateway() {
	s.Gateway.trx = &pg.Transaction{TransactionKey: "TR-4", Status: pg.TransactionPending}

	userID := s.seedUser(0)
	productID := s.seedProduct(5_000, 10)
	settled := s.placeCardOrder(userID, productID)

	s.Gateway.trx = &pg.Transaction{TransactionKey: "TR-5", Status: pg.TransactionPending}
	waiting := s.placeCardOrder(userID, productID)

	s.Gateway.lookup["TR-4"] = &pg.Transaction{TransactionKey: "TR-4", Status: pg.TransactionFailed, Reason: "timeout"}
	s.Gateway.lookup["TR-5"] = &pg.Transaction{TransactionKey: "TR-5", Status: pg.TransactionPending}

	// a negative age makes every PROCESSING payment stale
	n, err := s.PaymentService.SyncPending(s.Ctx, -time.Minute)
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Equal(domain.PaymentStatusFailed, s.paymentOf(settled.ID).Status)
	s.Equal(domain.PaymentStatusProcessing, s.paymentOf(waiting.ID).Status)
	s.Len(s.Publisher.OfType(generalDomain.TypePaymentFailure), 1)
}

// strandPayment puts a card payment back to PENDING as if the process had
// stopped between the order commit and the gateway request.
func (s *IntegrationTestSuite) strandPayment(orderID int64) {
	_, err := s.DbPool.Exec(s.Ctx, `
		UPDATE payments
		SET status = 'PENDING', transaction_key = NULL, reason = NULL, updated_at = NOW() - INTERVAL '1 hour'
		WHERE order_id = $1
	`, orderID)
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) TestSyncPending_ResubmitsStrandedCardPayment() {
	s.Gateway.trx = &pg.Transaction{TransactionKey: "TR-6", Status: pg.TransactionPending}

	userID := s.seedUser(0)
	productID := s.seedProduct(5_000, 10)
	order := s.placeCardOrder(userID, productID)
	s.strandPayment(order.ID)

	s.Gateway.trx = &pg.Transaction{TransactionKey: "TR-7", Status: pg.TransactionPending}

	n, err := s.PaymentService.SyncPending(s.Ctx, time.Minute)
	s.Require().NoError(err)
	s.Zero(n)

	s.Require().Len(s.Gateway.requests, 2)
	s.Equal(testCard.CardNo, s.Gateway.requests[1].CardNo)
	s.Equal(order.ID, s.Gateway.requests[1].OrderID)

	payment := s.paymentOf(order.ID)
	s.Equal(domain.PaymentStatusProcessing, payment.Status)
	s.Equal("TR-7", payment.Key())
}

func (s *IntegrationTestSuite) TestSyncPending_StrandedPaymentFailsAndCompensates() {
	s.Gateway.trx = &pg.Transaction{TransactionKey: "TR-8", Status: pg.TransactionPending}

	userID := s.seedUser(0)
	productID := s.seedProduct(5_000, 10)
	order := s.placeCardOrder(userID, productID)
	s.Equal(int64(8), s.stockOf(productID))
	s.strandPayment(order.ID)

	s.Gateway.err = pg.ErrTransient

	n, err := s.PaymentService.SyncPending(s.Ctx, time.Minute)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal(domain.PaymentStatusFailed, s.paymentOf(order.ID).Status)

	failed := s.Publisher.OfType(generalDomain.TypePaymentFailure)
	s.Require().Len(failed, 1)
	s.Require().NoError(s.deliver(failed[0].Event, failed[0].Key))

	s.Equal(domain.OrderStatusCancelled, s.orderStatus(userID, order.ID))
	s.Equal(int64(10), s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestSyncPending_LeavesFreshPendingAlone() {
	s.Gateway.trx = &pg.Transaction{TransactionKey: "TR-9", Status: pg.TransactionPending}

	userID := s.seedUser(0)
	productID := s.seedProduct(5_000, 10)
	order := s.placeCardOrder(userID, productID)

	_, err := s.DbPool.Exec(s.Ctx, `UPDATE payments SET status = 'PENDING', transaction_key = NULL WHERE order_id = $1`, order.ID)
	s.Require().NoError(err)

	_, err = s.PaymentService.SyncPending(s.Ctx, time.Hour)
	s.Require().NoError(err)

	s.Len(s.Gateway.requests, 1)
	s.Equal(domain.PaymentStatusPending, s.paymentOf(order.ID).Status)
}
