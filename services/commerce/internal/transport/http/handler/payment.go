package handler

import (
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service service.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(service service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

// Callback receives the gateway's final verdict for a transaction.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	var input service.CallbackCommand
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, h.logger, "error parsing body", err)
	}

	if err := h.service.HandleCallback(c.UserContext(), input); err != nil {
		return fail(c, h.logger, "payment callback failed", err)
	}

	return c.JSON(fiber.Map{"status": "success"})
}
