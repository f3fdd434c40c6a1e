package handler

import (
	"context"

	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type LikeHandler struct {
	service service.LikeService
	logger  *zap.Logger
}

func NewLikeHandler(service service.LikeService, logger *zap.Logger) *LikeHandler {
	return &LikeHandler{
		service: service,
		logger:  logger,
	}
}

func (h *LikeHandler) Like(c *fiber.Ctx) error {
	return h.toggle(c, h.service.Like)
}

func (h *LikeHandler) Unlike(c *fiber.Ctx) error {
	return h.toggle(c, h.service.Unlike)
}

func (h *LikeHandler) toggle(c *fiber.Ctx, fn func(ctx context.Context, userID, productID int64) (bool, error)) error {
	uid, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	productID, err := pathID(c)
	if err != nil {
		return badRequest(c, h.logger, "invalid product id", err)
	}

	changed, err := fn(c.UserContext(), uid, productID)
	if err != nil {
		return fail(c, h.logger, "like toggle failed", err)
	}

	return c.JSON(fiber.Map{
		"productId": productID,
		"changed":   changed,
	})
}
