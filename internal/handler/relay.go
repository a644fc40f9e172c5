package handler

import (
	"io"
	"log/slog"

	"github.com/labstack/echo/v4"

	"rewrite-proxy-go/internal/config"
	"rewrite-proxy-go/internal/metrics"
	"rewrite-proxy-go/internal/service"
)

// RelayHandler streams raw resources on /proxy.
type RelayHandler struct {
	service    *service.RelayService
	publicHost string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewRelayHandler creates a RelayHandler.
// The metrics parameter is optional; pass nil to disable byte counting.
func NewRelayHandler(svc *service.RelayService, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *RelayHandler {
	return &RelayHandler{
		service:    svc,
		publicHost: cfg.Server.PublicHost,
		logger:     logger.With("component", "relay_handler"),
		metrics:    m,
	}
}

// Handle fetches the url query parameter and streams the upstream body back.
func (h *RelayHandler) Handle(c echo.Context) error {
	pr, err := buildRequest(c, h.publicHost)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	resp, err := h.service.Fetch(pr)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already sent; a copy failure leaves the client with a
	// truncated body.
	n, err := io.Copy(c.Response(), resp.Body)
	if h.metrics != nil {
		h.metrics.RelayBytes.Add(float64(n))
	}
	if err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"host", pr.Target.Host,
			"bytes", n,
		)
	}

	return nil
}
