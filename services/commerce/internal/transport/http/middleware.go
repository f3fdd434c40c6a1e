package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const userHeader = "X-USER-ID"

// NewUserMiddleware resolves the caller from the X-USER-ID header.
func NewUserMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(userHeader)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed " + userHeader + " header"})
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: invalid user id"})
		}

		c.Locals("userId", userID)
		return c.Next()
	}
}
