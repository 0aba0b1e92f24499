package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/weather-copilot/internal/domain/weather"
	apperrors "github.com/yanqian/weather-copilot/pkg/errors"
)

// Handler wires the HTTP transport to the weather domain service.
type Handler struct {
	weatherSvc weather.Service
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(weatherSvc weather.Service, logger *slog.Logger) *Handler {
	return &Handler{
		weatherSvc: weatherSvc,
		logger:     logger.With("component", "http.handler"),
	}
}

// Ask answers a free-form weather question.
func (h *Handler) Ask(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	answer, err := h.weatherSvc.Ask(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// Locations searches for places matching the query.
func (h *Handler) Locations(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	answer, err := h.weatherSvc.Locations(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// Advice returns weather-driven recommendations for the query.
func (h *Handler) Advice(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	answer, err := h.weatherSvc.Advise(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) bind(c *gin.Context) (weather.Request, bool) {
	var req weather.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.Wrap(apperrors.CodeInvalidQuery, "request body must be JSON with a non-empty query field", err))
		return weather.Request{}, false
	}
	return req, true
}
