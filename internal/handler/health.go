package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"recruit-gateway/internal/config"
	"recruit-gateway/internal/model"
	"recruit-gateway/internal/route"
)

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	table   *route.Table
	version model.Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, table *route.Table, v model.Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, table: table, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns gateway status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      string(h.version),
		"upstream_url": h.cfg.Upstream.BaseURL,
		"prefix":       h.cfg.Gateway.Prefix,
		"routes":       h.table.Len(),
	})
}
