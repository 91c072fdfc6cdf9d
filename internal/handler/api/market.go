package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/internal/handler/ws"
	"CoinPulse/internal/rollup"
	"CoinPulse/internal/simulator"
	"CoinPulse/internal/usecase"
	apphttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
)

// MarketHandler exposes the simulator, rollup engine and history
// service over HTTP.
type MarketHandler struct {
	sim     *simulator.Simulator
	engine  *rollup.Engine
	history *usecase.HistoryService
	store   repository.MarketStore
	hub     *ws.Hub
	log     *logger.Logger
}

func NewMarketHandler(
	sim *simulator.Simulator,
	engine *rollup.Engine,
	history *usecase.HistoryService,
	store repository.MarketStore,
	hub *ws.Hub,
	log *logger.Logger,
) *MarketHandler {
	return &MarketHandler{
		sim:     sim,
		engine:  engine,
		history: history,
		store:   store,
		hub:     hub,
		log:     log,
	}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	market := e.Group("/market")
	market.GET("/status", h.Status)
	market.GET("/stats", h.Stats)
	market.POST("/start", h.Start)
	market.POST("/stop", h.Stop)
	market.GET("/rollups/status", h.RollupStatus)

	e.GET("/coins/:id/price-history-v2", h.PriceHistory)

	if h.hub != nil {
		e.GET("/ws/ticks", h.hub.ServeWS)
	}
}

func (h *MarketHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.log.Error("health check failed", logger.Error(err))
		return apphttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return apphttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *MarketHandler) Status(c echo.Context) error {
	return apphttp.SuccessResponse(c, h.sim.MarketStatus())
}

func (h *MarketHandler) Stats(c echo.Context) error {
	req := new(models.MarketStatsRequest)
	if errs := apphttp.ReadAndValidateRequest(c, req); errs != nil {
		return apphttp.BadRequestResponse(c, errs)
	}

	stats, err := h.sim.MarketStats(c.Request().Context(), req.TimeRange)
	if err != nil {
		h.log.Error("market stats failed", logger.Error(err))
		return apphttp.InternalServerErrorResponse(c)
	}
	return apphttp.SuccessResponse(c, stats)
}

func (h *MarketHandler) Start(c echo.Context) error {
	if err := h.sim.Start(c.Request().Context()); err != nil {
		h.log.Error("simulator start failed", logger.Error(err))
		return apphttp.InternalServerErrorResponse(c)
	}
	return apphttp.SuccessResponse(c, h.sim.MarketStatus())
}

func (h *MarketHandler) Stop(c echo.Context) error {
	h.sim.Stop()
	return apphttp.SuccessResponse(c, h.sim.MarketStatus())
}

func (h *MarketHandler) RollupStatus(c echo.Context) error {
	return apphttp.SuccessResponse(c, h.engine.GetStatus())
}

func (h *MarketHandler) PriceHistory(c echo.Context) error {
	req := new(models.PriceHistoryRequest)
	if errs := apphttp.ReadAndValidateRequest(c, req); errs != nil {
		return apphttp.BadRequestResponse(c, errs)
	}

	result, err := h.history.GetPriceHistory(c.Request().Context(), *req)
	if err != nil {
		if _, ok := err.(*apphttp.AppError); !ok {
			h.log.Error("price history failed", logger.Error(err))
		}
		return apphttp.AppErrorResponse(c, err)
	}
	return apphttp.SuccessResponse(c, result)
}
