package tests

import (
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/apperr"
	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
)

func (s *IntegrationTestSuite) TestPlaceOrder_PointPayment() {
	userID := s.seedUser(50_000)
	productID := s.seedProduct(10_000, 10)

	order, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID:      userID,
		Items:       []service.OrderLine{{ProductID: productID, Quantity: 3}},
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().NoError(err)

	s.Equal(domain.OrderStatusPending, order.Status)
	s.Equal(int64(30_000), order.TotalPrice)
	s.Equal(int64(30_000), order.FinalPrice)
	s.Equal(int64(30_000), order.UsedPoints)

	s.Equal(int64(7), s.stockOf(productID))
	s.Equal(int64(20_000), s.balanceOf(userID))

	payment, err := s.PaymentService.GetByOrderID(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentStatusSuccess, payment.Status)
	s.Equal(domain.PointTransactionKey(order.ID), payment.Key())

	created := s.Publisher.OfType(generalDomain.TypeOrderCreated)
	s.Require().Len(created, 1)
	s.Equal(topics.OrderTopic, created[0].Topic)

	decreased := s.Publisher.OfType(generalDomain.TypeStockDecreased)
	s.Require().Len(decreased, 1)
	evt := decreased[0].Event.(generalDomain.StockDecreasedEvent)
	s.Equal(generalDomain.StockReasonOrder, evt.Reason)
	s.Equal(int64(10), evt.PreviousStock)
	s.Equal(int64(7), evt.CurrentStock)

	paid := s.Publisher.OfType(generalDomain.TypePaymentSuccess)
	s.Require().Len(paid, 1)
	s.Equal(topics.PaymentTopic, paid[0].Topic)
	s.Equal(order.ID, paid[0].Event.(generalDomain.PaymentSuccessEvent).OrderID)
}

func (s *IntegrationTestSuite) TestPlaceOrder_MergesRepeatedLines() {
	userID := s.seedUser(100_000)
	first := s.seedProduct(1_000, 10)
	second := s.seedProduct(2_000, 10)

	order, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID: userID,
		Items: []service.OrderLine{
			{ProductID: second, Quantity: 1},
			{ProductID: first, Quantity: 2},
			{ProductID: second, Quantity: 2},
		},
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().NoError(err)

	s.Require().Len(order.Items, 2)
	s.Equal(int64(8_000), order.TotalPrice)
	s.Equal(int64(8), s.stockOf(first))
	s.Equal(int64(7), s.stockOf(second))
	s.Len(s.Publisher.OfType(generalDomain.TypeStockDecreased), 2)

	// items keep the caller's order even though stock is locked by product id
	s.Equal(second, order.Items[0].ProductID)
	s.Equal(int64(3), order.Items[0].Quantity)
	s.Equal(int64(2_000), order.Items[0].Price)
	s.Equal(first, order.Items[1].ProductID)

	stored, err := s.OrderService.GetOrder(s.Ctx, userID, order.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Items, 2)
	s.Equal(second, stored.Items[0].ProductID)
	s.Equal(first, stored.Items[1].ProductID)
}

func (s *IntegrationTestSuite) TestPlaceOrder_InsufficientBalanceRollsBack() {
	userID := s.seedUser(2_000)
	first := s.seedProduct(1_000, 10)
	second := s.seedProduct(500, 10)

	_, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID: userID,
		Items: []service.OrderLine{
			{ProductID: first, Quantity: 2},
			{ProductID: second, Quantity: 1},
		},
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().ErrorIs(err, domain.ErrInsufficientBalance)

	s.Equal(int64(10), s.stockOf(first))
	s.Equal(int64(10), s.stockOf(second))
	s.Equal(int64(2_000), s.balanceOf(userID))
	s.Zero(s.countRows("orders"))
	s.Zero(s.countRows("payments"))
	s.Zero(s.Publisher.Len())
}

func (s *IntegrationTestSuite) TestPlaceOrder_InsufficientStockRollsBack() {
	userID := s.seedUser(100_000)
	plenty := s.seedProduct(1_000, 10)
	scarce := s.seedProduct(1_000, 1)

	_, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID: userID,
		Items: []service.OrderLine{
			{ProductID: plenty, Quantity: 2},
			{ProductID: scarce, Quantity: 2},
		},
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().ErrorIs(err, domain.ErrInsufficientStock)

	s.Equal(int64(10), s.stockOf(plenty))
	s.Equal(int64(1), s.stockOf(scarce))
	s.Equal(int64(100_000), s.balanceOf(userID))
	s.Zero(s.countRows("orders"))
	s.Zero(s.Publisher.Len())
}

func (s *IntegrationTestSuite) TestPlaceOrder_UnknownProduct() {
	userID := s.seedUser(100_000)

	_, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID:      userID,
		Items:       []service.OrderLine{{ProductID: 999, Quantity: 1}},
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().ErrorIs(err, repository.ErrProductNotFound)
}

func (s *IntegrationTestSuite) TestPlaceOrder_CouponApplied() {
	userID := s.seedUser(100_000)
	productID := s.seedProduct(10_000, 10)
	couponID := s.seedCoupon(userID, domain.DiscountTypeRate, 10, domain.UserCouponAvailable, time.Now().Add(24*time.Hour))

	order, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID:      userID,
		Items:       []service.OrderLine{{ProductID: productID, Quantity: 2}},
		CouponID:    &couponID,
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().NoError(err)

	s.Equal(int64(20_000), order.TotalPrice)
	s.Equal(int64(2_000), order.DiscountAmount)
	s.Equal(int64(18_000), order.FinalPrice)
	s.Equal(int64(82_000), s.balanceOf(userID))
	s.Equal(domain.UserCouponUsed, s.couponStatus(userID, couponID))
}

func (s *IntegrationTestSuite) TestPlaceOrder_UnusableCouponRollsBack() {
	cases := []struct {
		name      string
		status    domain.UserCouponStatus
		expiresAt time.Time
	}{
		{name: "already used", status: domain.UserCouponUsed, expiresAt: time.Now().Add(24 * time.Hour)},
		{name: "expired", status: domain.UserCouponAvailable, expiresAt: time.Now().Add(-time.Hour)},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			userID := s.seedUser(100_000)
			productID := s.seedProduct(10_000, 10)
			couponID := s.seedCoupon(userID, domain.DiscountTypeFixed, 1_000, tc.status, tc.expiresAt)
			published := s.Publisher.Len()

			_, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
				UserID:      userID,
				Items:       []service.OrderLine{{ProductID: productID, Quantity: 1}},
				CouponID:    &couponID,
				PaymentType: string(domain.PaymentTypePoint),
			})
			s.Require().ErrorIs(err, domain.ErrCouponNotUsable)

			s.Equal(int64(10), s.stockOf(productID))
			s.Equal(int64(100_000), s.balanceOf(userID))
			s.Equal(tc.status, s.couponStatus(userID, couponID))
			s.Equal(published, s.Publisher.Len())
		})
	}

	s.Zero(s.countRows("orders"))
}

func (s *IntegrationTestSuite) TestPlaceOrder_CouponOfAnotherUser() {
	owner := s.seedUser(0)
	userID := s.seedUser(100_000)
	productID := s.seedProduct(10_000, 10)
	couponID := s.seedCoupon(owner, domain.DiscountTypeFixed, 1_000, domain.UserCouponAvailable, time.Now().Add(time.Hour))

	_, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID:      userID,
		Items:       []service.OrderLine{{ProductID: productID, Quantity: 1}},
		CouponID:    &couponID,
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().ErrorIs(err, repository.ErrCouponNotFound)
	s.Equal(int64(10), s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestPlaceOrder_Validation() {
	_, err := s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID:      1,
		PaymentType: string(domain.PaymentTypePoint),
	})
	s.Require().ErrorIs(err, apperr.ErrValidation)

	_, err = s.OrderService.PlaceOrder(s.Ctx, service.PlaceOrderCommand{
		UserID:      1,
		Items:       []service.OrderLine{{ProductID: 1, Quantity: 1}},
		PaymentType: string(domain.PaymentTypeCard),
	})
	s.Require().ErrorIs(err, domain.ErrMissingCard)
}
