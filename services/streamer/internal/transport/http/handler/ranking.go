package handler

import (
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/utils"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/ranking"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type RankingHandler struct {
	engine *ranking.Engine
	batch  *ranking.Batch
	logger *zap.Logger
}

func NewRankingHandler(engine *ranking.Engine, batch *ranking.Batch, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{
		engine: engine,
		batch:  batch,
		logger: logger,
	}
}

// Top serves GET /rankings?date=yyyyMMdd&page=&size=.
func (h *RankingHandler) Top(c *fiber.Ctx) error {
	date, err := h.date(c)
	if err != nil {
		return h.badRequest(c, "invalid date, expected yyyyMMdd", err)
	}

	page, size := pagination(c)

	items, err := h.engine.Top(c.UserContext(), date, page, size)
	if err != nil {
		return h.fail(c, "get ranking failed", err)
	}

	total, err := h.engine.Count(c.UserContext(), date)
	if err != nil {
		return h.fail(c, "count ranking failed", err)
	}

	return c.JSON(fiber.Map{
		"date":  date.Format("20060102"),
		"page":  page,
		"size":  size,
		"total": total,
		"items": items,
	})
}

// Rank serves GET /rankings/products/:id?date=yyyyMMdd.
func (h *RankingHandler) Rank(c *fiber.Ctx) error {
	productID, err := c.ParamsInt("id")
	if err != nil || productID <= 0 {
		return h.badRequest(c, "invalid product id", err)
	}

	date, err := h.date(c)
	if err != nil {
		return h.badRequest(c, "invalid date, expected yyyyMMdd", err)
	}

	item, ranked, err := h.engine.RankOf(c.UserContext(), date, int64(productID))
	if err != nil {
		return h.fail(c, "get product rank failed", err)
	}

	if !ranked {
		return c.JSON(fiber.Map{
			"productId": productID,
			"ranked":    false,
		})
	}

	return c.JSON(fiber.Map{
		"productId": item.ProductID,
		"ranked":    true,
		"rank":      item.Rank,
		"score":     item.Score,
	})
}

// Snapshot serves GET /rankings/snapshots/:period?key=yyyyMMdd&page=&size=.
func (h *RankingHandler) Snapshot(c *fiber.Ctx) error {
	period, err := domain.ParsePeriod(c.Params("period"))
	if err != nil {
		return h.badRequest(c, "invalid period", err)
	}

	date, err := h.dateParam(c, "key")
	if err != nil {
		return h.badRequest(c, "invalid key, expected yyyyMMdd", err)
	}

	page, size := pagination(c)

	rows, err := h.batch.Top(c.UserContext(), period, domain.PeriodKey(date), page, size)
	if err != nil {
		return h.fail(c, "get ranking snapshot failed", err)
	}

	return c.JSON(fiber.Map{
		"period": period,
		"key":    domain.PeriodKey(date),
		"page":   page,
		"size":   size,
		"items":  rows,
	})
}

func (h *RankingHandler) date(c *fiber.Ctx) (time.Time, error) {
	return h.dateParam(c, "date")
}

func (h *RankingHandler) dateParam(c *fiber.Ctx, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Now().In(h.engine.Location()), nil
	}

	return time.ParseInLocation("20060102", raw, h.engine.Location())
}

func pagination(c *fiber.Ctx) (int, int) {
	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", defaultPageSize)

	if size > maxPageSize {
		size = maxPageSize
	}

	return page, size
}

func (h *RankingHandler) badRequest(c *fiber.Ctx, msg string, err error) error {
	mylogger.Warn(c.UserContext(), h.logger, msg, zap.Error(err))

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func (h *RankingHandler) fail(c *fiber.Ctx, msg string, err error) error {
	httpCode := utils.HTTPStatus(err)

	mylogger.Warn(c.UserContext(), h.logger, msg, zap.Int("http_code", httpCode), zap.Error(err))

	return c.Status(httpCode).JSON(fiber.Map{
		"error": err.Error(),
	})
}
