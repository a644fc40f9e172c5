package service

import (
	"log/slog"
	"net/http"

	"rewrite-proxy-go/internal/client"
	"rewrite-proxy-go/internal/denylist"
	"rewrite-proxy-go/internal/metrics"
	"rewrite-proxy-go/internal/model"
)

const defaultContentType = "application/octet-stream"

// RelayService fetches arbitrary resources and hands back the raw stream.
type RelayService struct {
	client  *client.UpstreamClient
	deny    *denylist.Denylist
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRelayService creates a RelayService.
// The metrics parameter is optional; pass nil to disable recording.
func NewRelayService(c *client.UpstreamClient, deny *denylist.Denylist, logger *slog.Logger, m *metrics.Metrics) *RelayService {
	return &RelayService{
		client:  c,
		deny:    deny,
		logger:  logger.With("component", "relay_service"),
		metrics: m,
	}
}

// Fetch requests pr.Target and returns the upstream response with only the
// Content-Type header kept (application/octet-stream when absent).
// The caller is responsible for closing the response body.
func (s *RelayService) Fetch(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if s.deny.Blocked(pr.Target) {
		if s.metrics != nil {
			s.metrics.BlockedRequests.WithLabelValues("relay").Inc()
		}
		return nil, ErrForbidden
	}

	s.logger.Debug("relaying resource", "host", pr.Target.Host)

	resp, err := s.client.Get(pr.Ctx, pr.Target, pr.UserAgent)
	if err != nil {
		return nil, upstreamError(err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	resp.Header = http.Header{"Content-Type": []string{contentType}}
	return resp, nil
}
