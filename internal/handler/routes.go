package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, index *IndexHandler, page *PageHandler, relay *RelayHandler, health *HealthHandler) {
	e.GET("/", index.Handle)
	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status)

	e.GET("/proxy-page", page.Handle)
	e.GET("/proxy", relay.Handle)
}
