package handler

import (
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserHandler struct {
	service service.UserService
	logger  *zap.Logger
}

func NewUserHandler(service service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

func (h *UserHandler) SignUp(c *fiber.Ctx) error {
	var input service.SignUpCommand
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, h.logger, "error parsing body", err)
	}

	user, err := h.service.SignUp(c.UserContext(), input)
	if err != nil {
		return fail(c, h.logger, "sign up failed", err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	user, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return fail(c, h.logger, "get user failed", err)
	}

	return c.JSON(user)
}
