package handler

import (
	"strconv"

	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProductHandler struct {
	service service.ProductService
	logger  *zap.Logger
}

func NewProductHandler(service service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger,
	}
}

type restockRequest struct {
	Quantity int64 `json:"quantity"`
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var input service.CreateProductCommand
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, h.logger, "error parsing body", err)
	}

	product, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return fail(c, h.logger, "create product failed", err)
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) GetDetail(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, h.logger, "invalid product id", err)
	}

	detail, err := h.service.GetDetail(c.UserContext(), id)
	if err != nil {
		return fail(c, h.logger, "get product failed", err)
	}

	viewer, _ := strconv.ParseInt(c.Get("X-USER-ID"), 10, 64)
	h.service.RecordView(c.UserContext(), viewer, id)

	return c.JSON(detail)
}

func (h *ProductHandler) Restock(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, h.logger, "invalid product id", err)
	}

	var input restockRequest
	if err := c.BodyParser(&input); err != nil {
		return badRequest(c, h.logger, "error parsing body", err)
	}

	change, err := h.service.Restock(c.UserContext(), id, input.Quantity)
	if err != nil {
		return fail(c, h.logger, "restock failed", err)
	}

	return c.JSON(fiber.Map{
		"productId":     change.ProductID,
		"previousStock": change.PreviousStock,
		"currentStock":  change.CurrentStock,
	})
}
