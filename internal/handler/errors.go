package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"rewrite-proxy-go/internal/middleware"
	"rewrite-proxy-go/internal/service"
)

// writeError maps a service error to a plain-text response. Only the target
// host is logged; paths and queries may carry credentials.
func writeError(c echo.Context, logger *slog.Logger, err error) error {
	status, msg := classify(err)

	attrs := []any{
		"err", err,
		"status", status,
		"target_host", middleware.TargetHost(c.QueryParam("url")),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("proxy error", attrs...)
	} else {
		logger.Info("request refused", attrs...)
	}

	return c.String(status, msg)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingParameter):
		return http.StatusBadRequest, service.ErrMissingParameter.Error()
	case errors.Is(err, service.ErrInvalidParameter):
		return http.StatusBadRequest, service.ErrInvalidParameter.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, service.ErrForbidden.Error()
	}

	var fetchErr *service.UpstreamFetchError
	if errors.As(err, &fetchErr) {
		return http.StatusInternalServerError, fetchErr.Error()
	}
	return http.StatusInternalServerError, "fetch failed: " + err.Error()
}
