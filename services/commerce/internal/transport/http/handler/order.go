package handler

import (
	"context"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders   service.OrderService
	payments service.PaymentService
	logger   *zap.Logger
}

func NewOrderHandler(orders service.OrderService, payments service.PaymentService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		payments: payments,
		logger:   logger,
	}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	var input service.PlaceOrderCommand
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, h.logger, "error parsing body", err)
	}
	input.UserID = uid

	order, err := h.orders.PlaceOrder(c.UserContext(), input)
	if err != nil {
		return fail(c, h.logger, "create order failed", err)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"create order succeeded",
		zap.Int64("created_id", order.ID),
	)

	return c.Status(fiber.StatusCreated).JSON(orderResponse(order))
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	orderID, err := pathID(c)
	if err != nil {
		return badRequest(c, h.logger, "invalid order id", err)
	}

	order, err := h.orders.GetOrder(c.UserContext(), uid, orderID)
	if err != nil {
		return fail(c, h.logger, "get order failed", err)
	}

	return c.JSON(orderResponse(order))
}

func (h *OrderHandler) GetPayment(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	orderID, err := pathID(c)
	if err != nil {
		return badRequest(c, h.logger, "invalid order id", err)
	}

	if _, err := h.orders.GetOrder(c.UserContext(), uid, orderID); err != nil {
		return fail(c, h.logger, "get order failed", err)
	}

	payment, err := h.payments.GetByOrderID(c.UserContext(), orderID)
	if err != nil {
		return fail(c, h.logger, "get payment failed", err)
	}

	return c.JSON(fiber.Map{
		"orderId":        payment.OrderID,
		"transactionKey": payment.Key(),
		"amount":         payment.Amount,
		"status":         payment.Status,
		"paymentType":    payment.PaymentType,
		"reason":         payment.Reason,
	})
}

func (h *OrderHandler) Ship(c *fiber.Ctx) error {
	return h.advance(c, h.orders.ShipOrder)
}

func (h *OrderHandler) Deliver(c *fiber.Ctx) error {
	return h.advance(c, h.orders.DeliverOrder)
}

func (h *OrderHandler) advance(c *fiber.Ctx, step func(ctx context.Context, orderID int64) error) error {
	orderID, err := pathID(c)
	if err != nil {
		return badRequest(c, h.logger, "invalid order id", err)
	}

	if err := step(c.UserContext(), orderID); err != nil {
		return fail(c, h.logger, "order transition failed", err)
	}

	return c.JSON(fiber.Map{"orderId": orderID, "status": "success"})
}
