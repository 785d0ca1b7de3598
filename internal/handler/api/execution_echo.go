package api

import (
	"context"
	"strings"

	models "ExecCore/internal/domain/models"
	"ExecCore/internal/usecase"
	xhttp "ExecCore/pkg/http"
	"ExecCore/pkg/http/middleware"
	xlogger "ExecCore/pkg/logger"

	"github.com/labstack/echo/v4"
)

// VolService is the forecast surface exposed over HTTP.
type VolService interface {
	ForecastVol(ctx context.Context, symbol string, horizonMinutes int) (models.VolatilityForecast, error)
	ClearCache(ctx context.Context, symbol string) error
}

// GuardAdmin exposes risk guard inspection and reset.
type GuardAdmin interface {
	GetState() models.RiskGuardState
	Reset()
}

// ExecutionEchoHandler serves the planner, router and risk endpoints.
type ExecutionEchoHandler struct {
	logger  *xlogger.Logger
	uc      *usecase.ExecutionUseCase
	vol     VolService
	guard   GuardAdmin
	limiter middleware.Allower
}

func NewExecutionEchoHandler(logger *xlogger.Logger, uc *usecase.ExecutionUseCase, vol VolService, guard GuardAdmin, limiter middleware.Allower) *ExecutionEchoHandler {
	return &ExecutionEchoHandler{logger: logger, uc: uc, vol: vol, guard: guard, limiter: limiter}
}

func (h *ExecutionEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")

	var mutating []echo.MiddlewareFunc
	if h.limiter != nil {
		mutating = append(mutating, middleware.RateLimit(h.limiter))
	}
	g.POST("/simulate", h.Simulate, mutating...)
	g.POST("/plan-and-execute", h.PlanAndExecute, mutating...)
	g.POST("/risk/reset", h.ResetRisk, mutating...)
	g.DELETE("/vol/cache", h.ClearVolCache, mutating...)

	g.GET("/sizing/last", h.LastSizing)
	g.GET("/history", h.History)
	g.GET("/history/:id", h.HistoryRecord)
	g.GET("/vol", h.Vol)
	g.GET("/risk/state", h.RiskState)
}

func (h *ExecutionEchoHandler) Simulate(c echo.Context) error {
	req := &models.SimulateRequest{}
	if verr := xhttp.Bind(c, req); verr != nil {
		return xhttp.Invalid(c, verr)
	}
	plan := h.uc.Simulate(c.Request().Context(), *req)
	return xhttp.OK(c, plan)
}

// PlanAndExecute always answers 200 with the record; blocked and cancelled
// are outcomes, not transport errors.
func (h *ExecutionEchoHandler) PlanAndExecute(c echo.Context) error {
	req := &models.PlanExecuteRequest{}
	if verr := xhttp.Bind(c, req); verr != nil {
		return xhttp.Invalid(c, verr)
	}
	rec := h.uc.PlanAndExecute(c.Request().Context(), req.Context())
	return xhttp.OK(c, rec)
}

func (h *ExecutionEchoHandler) LastSizing(c echo.Context) error {
	snap, ok := h.uc.LastSizing()
	if !ok {
		return xhttp.Fail(c, xhttp.NotFound("no sizing decision yet"))
	}
	return xhttp.OK(c, snap)
}

func (h *ExecutionEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.Bind(c, req); verr != nil {
		return xhttp.Invalid(c, verr)
	}
	recs := h.uc.History(req.Limit)
	return xhttp.List(c, recs, len(recs))
}

func (h *ExecutionEchoHandler) HistoryRecord(c echo.Context) error {
	id := c.Param("id")
	rec, ok := h.uc.Record(id)
	if !ok {
		return xhttp.Fail(c, xhttp.NotFound("record %s not found", id))
	}
	return xhttp.OK(c, rec)
}

func (h *ExecutionEchoHandler) Vol(c echo.Context) error {
	req := &models.VolRequest{}
	if verr := xhttp.Bind(c, req); verr != nil {
		return xhttp.Invalid(c, verr)
	}
	fc, err := h.vol.ForecastVol(c.Request().Context(), strings.ToUpper(req.Symbol), req.Horizon)
	if err != nil {
		h.logger.Error("vol forecast error", xlogger.Symbol(req.Symbol), xlogger.Error(err))
		return xhttp.Fail(c, xhttp.Internal("forecast failed").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.OK(c, fc)
}

func (h *ExecutionEchoHandler) ClearVolCache(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.Bind(c, req); verr != nil {
		return xhttp.Invalid(c, verr)
	}
	sym := strings.ToUpper(req.Symbol)
	if err := h.vol.ClearCache(c.Request().Context(), sym); err != nil {
		h.logger.Error("vol cache clear error", xlogger.Symbol(sym), xlogger.Error(err))
		return xhttp.Fail(c, xhttp.Unavailable("forecast cache unavailable").WithError(err))
	}
	return xhttp.OK(c, map[string]string{"cleared": sym})
}

func (h *ExecutionEchoHandler) RiskState(c echo.Context) error {
	return xhttp.OK(c, h.guard.GetState())
}

func (h *ExecutionEchoHandler) ResetRisk(c echo.Context) error {
	h.guard.Reset()
	h.logger.Warn("risk guard counters reset", xlogger.String("remote", c.RealIP()))
	return xhttp.OK(c, h.guard.GetState())
}
