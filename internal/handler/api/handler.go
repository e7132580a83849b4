package api

import (
	"net/http"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	domrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/usecase"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
)

var validate = validator.New()

// Handler exposes zones, signals and structure over HTTP for display and
// audit consumers.
type Handler struct {
	log     *applogger.Logger
	scan    *usecase.ScanUseCase
	weights domrepo.WeightStore
	bars    domrepo.BarSeries
}

func NewHandler(log *applogger.Logger, scan *usecase.ScanUseCase, weights domrepo.WeightStore, bars domrepo.BarSeries) *Handler {
	return &Handler{log: log, scan: scan, weights: weights, bars: bars}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/zones", h.Zones)
	g.GET("/signals", h.Signals)
	g.GET("/structure", h.Structure)
	g.GET("/weights", h.Weights)
	g.POST("/weights", h.SetWeight)
	e.GET("/healthz", h.Healthz)
}

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Data: data})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, envelope{Error: msg})
}

func (h *Handler) Zones(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return badRequest(c, "symbol required")
	}
	tf := domrepo.NormalizeTimeframe(c.QueryParam("tf"))
	return ok(c, h.scan.Zones(symbol, tf))
}

func (h *Handler) Signals(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return badRequest(c, "symbol required")
	}
	return ok(c, h.scan.Signals(symbol))
}

func (h *Handler) Structure(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return badRequest(c, "symbol required")
	}
	tf := domrepo.NormalizeTimeframe(c.QueryParam("tf"))
	ms, err := h.scan.Structure(c.Request().Context(), symbol, tf)
	if err != nil {
		h.log.Error("structure handler error", applogger.Error(err))
		return c.JSON(http.StatusInternalServerError, envelope{Error: "structure unavailable"})
	}
	return ok(c, ms)
}

func (h *Handler) Weights(c echo.Context) error {
	w, err := h.weights.Weights(c.Request().Context())
	if err != nil {
		h.log.Error("weights handler error", applogger.Error(err))
		return c.JSON(http.StatusInternalServerError, envelope{Error: "weights unavailable"})
	}
	return ok(c, w)
}

// SetWeightRequest tunes one ensemble source weight.
type SetWeightRequest struct {
	Source string  `json:"source" validate:"required"`
	Weight float64 `json:"weight" default:"1.0" validate:"gte=0,lte=10"`
}

func (h *Handler) SetWeight(c echo.Context) error {
	req := &SetWeightRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := defaults.Set(req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.weights.SetWeight(c.Request().Context(), req.Source, req.Weight); err != nil {
		h.log.Error("set weight error", applogger.Error(err))
		return c.JSON(http.StatusInternalServerError, envelope{Error: "weight update failed"})
	}
	return ok(c, req)
}

func (h *Handler) Healthz(c echo.Context) error {
	if err := h.bars.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, envelope{Error: "bar store unhealthy"})
	}
	return ok(c, map[string]string{"status": "ok"})
}
