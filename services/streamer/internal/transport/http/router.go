package http

import (
	"github.com/KBroJ/LoopPak-BE-sub001/services/streamer/internal/transport/http/handler"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Ranking *handler.RankingHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	rankings := app.Group("/api/v1/rankings")

	rankings.Get("", h.Ranking.Top)
	rankings.Get("/products/:id", h.Ranking.Rank)
	rankings.Get("/snapshots/:period", h.Ranking.Snapshot)
}
