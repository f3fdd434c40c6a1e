package handler

import (
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PointHandler struct {
	service service.PointService
	logger  *zap.Logger
}

func NewPointHandler(service service.PointService, logger *zap.Logger) *PointHandler {
	return &PointHandler{
		service: service,
		logger:  logger,
	}
}

type chargeRequest struct {
	Amount int64 `json:"amount"`
}

func (h *PointHandler) Get(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	point, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, h.logger, "get points failed", err)
	}

	return c.JSON(fiber.Map{
		"userId":  point.UserID,
		"balance": point.Balance,
	})
}

func (h *PointHandler) Charge(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	var input chargeRequest
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, h.logger, "error parsing body", err)
	}

	point, err := h.service.Charge(c.UserContext(), id, input.Amount)
	if err != nil {
		return fail(c, h.logger, "charge points failed", err)
	}

	return c.JSON(fiber.Map{
		"userId":  point.UserID,
		"balance": point.Balance,
	})
}
