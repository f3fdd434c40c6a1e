package http

import (
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/transport/http/handler"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	User    *handler.UserHandler
	Point   *handler.PointHandler
	Product *handler.ProductHandler
	Like    *handler.LikeHandler
	Order   *handler.OrderHandler
	Payment *handler.PaymentHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	v1 := app.Group("/api/v1")

	v1.Post("/users", h.User.SignUp)
	v1.Post("/payments/callback", h.Payment.Callback)
	v1.Post("/products", h.Product.Create)
	v1.Get("/products/:id", h.Product.GetDetail)
	v1.Post("/products/:id/restock", h.Product.Restock)
	v1.Post("/orders/:id/ship", h.Order.Ship)
	v1.Post("/orders/:id/deliver", h.Order.Deliver)

	api := v1.Group("", NewUserMiddleware())

	api.Get("/users/me", h.User.GetMe)

	points := api.Group("/points")
	points.Get("", h.Point.Get)
	points.Post("/charge", h.Point.Charge)

	like := api.Group("/like/products")
	like.Post("/:id", h.Like.Like)
	like.Delete("/:id", h.Like.Unlike)

	orders := api.Group("/orders")
	orders.Post("", h.Order.Create)
	orders.Get("/:id", h.Order.Get)
	orders.Get("/:id/payment", h.Order.GetPayment)
}
