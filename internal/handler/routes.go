package handler

import (
	"github.com/labstack/echo/v4"

	"recruit-gateway/internal/config"
	"recruit-gateway/internal/route"
)

// RegisterRoutes wires the health endpoints and one echo route per table
// entry under the gateway prefix. Errors raised by middleware on a gateway
// route are rendered in the gateway envelope.
func RegisterRoutes(e *echo.Echo, gw *GatewayHandler, health *HealthHandler, table *route.Table, cfg *config.Config) {
	e.GET("/healthz", health.Healthz)
	e.GET("/gateway/status", health.Status)

	for _, spec := range table.Specs() {
		e.Add(spec.Method, spec.EchoPath(cfg.Gateway.Prefix), gw.For(spec))
	}
	e.HTTPErrorHandler = gw.ErrorHandler(table, e.DefaultHTTPErrorHandler)
}
