package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"rewrite-proxy-go/internal/config"
	"rewrite-proxy-go/internal/model"
	"rewrite-proxy-go/internal/service"
)

// PageHandler serves rewritten HTML documents on /proxy-page.
type PageHandler struct {
	service    *service.PageService
	publicHost string
	logger     *slog.Logger
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(svc *service.PageService, cfg *config.Config, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		service:    svc,
		publicHost: cfg.Server.PublicHost,
		logger:     logger.With("component", "page_handler"),
	}
}

// Handle fetches the url query parameter, rewrites it and responds with the
// document as text/html.
func (h *PageHandler) Handle(c echo.Context) error {
	pr, err := buildRequest(c, h.publicHost)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	page, err := h.service.Render(pr)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return c.HTML(http.StatusOK, page.HTML)
}

// buildRequest extracts the ProxyRequest shared by both proxy endpoints.
func buildRequest(c echo.Context, publicHost string) (*model.ProxyRequest, error) {
	req := c.Request()

	target, err := service.ParseTarget(c.QueryParam("url"))
	if err != nil {
		return nil, err
	}

	proxyHost := publicHost
	if proxyHost == "" {
		proxyHost = req.Host
	}

	return &model.ProxyRequest{
		Ctx:       req.Context(),
		Target:    target,
		UserAgent: req.UserAgent(),
		ProxyHost: proxyHost,
	}, nil
}
