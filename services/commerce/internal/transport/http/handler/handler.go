package handler

import (
	"errors"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var (
	errMissingUser = errors.New("userId parsing error")
	errInvalidID   = errors.New("id must be a positive integer")
)

func userID(c *fiber.Ctx) (int64, error) {
	id, ok := c.Locals("userId").(int64)
	if !ok {
		return 0, errMissingUser
	}

	return id, nil
}

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errInvalidID
	}

	return int64(id), nil
}

func badRequest(c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	mylogger.Warn(c.UserContext(), logger, msg, zap.Error(err))

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": errMissingUser.Error()})
}

func fail(c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	httpCode := utils.HTTPStatus(err)

	if httpCode >= fiber.StatusInternalServerError {
		mylogger.Error(c.UserContext(), logger, msg, zap.Int("http_code", httpCode), zap.Error(err))
	} else {
		mylogger.Warn(c.UserContext(), logger, msg, zap.Int("http_code", httpCode), zap.Error(err))
	}

	return c.Status(httpCode).JSON(fiber.Map{
		"error": err.Error(),
	})
}
