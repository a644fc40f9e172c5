// Package client provides the upstream HTTP client for target sites.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"rewrite-proxy-go/internal/config"
	"rewrite-proxy-go/internal/denylist"
	"rewrite-proxy-go/internal/metrics"
	"rewrite-proxy-go/internal/model"
)

// ErrBlockedRedirect is returned when a target redirects to a denylisted host.
var ErrBlockedRedirect = errors.New("redirect to denylisted host")

// ErrTooManyRedirects is returned when a target exceeds upstream.max_redirects.
var ErrTooManyRedirects = errors.New("too many redirects")

// UpstreamClient fetches target URLs on behalf of browsers.
type UpstreamClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// upstream.timeout_seconds bounds connecting, the TLS handshake and the wait
// for response headers of each hop. Bodies are not time-limited here; callers
// that need a deadline for the whole exchange set one on the context.
// Every redirect hop is checked against deny. The metrics parameter is
// optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, deny *denylist.Denylist, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	timeout := cfg.Upstream.Timeout()
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost:   cfg.Upstream.IdleConnections,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   min(timeout, 10*time.Second),
		ResponseHeaderTimeout: timeout,
		DialContext: (&net.Dialer{
			Timeout:   min(timeout, 30*time.Second),
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	maxRedirects := cfg.Upstream.MaxRedirects
	return &UpstreamClient{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return ErrTooManyRedirects
				}
				if deny != nil && deny.Blocked(req.URL) {
					return fmt.Errorf("%w: %s", ErrBlockedRedirect, req.URL.Hostname())
				}
				return nil
			},
		},
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
}

// Get fetches target, sending userAgent as the only request header.
// The caller is responsible for closing the response body.
// The provided context controls the lifetime of the upstream request:
// when the context is canceled (e.g. client disconnects), the upstream
// request is also canceled.
func (c *UpstreamClient) Get(ctx context.Context, target *url.URL, userAgent string) (*model.ProxyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	// An explicitly empty User-Agent suppresses Go's default one.
	req.Header = http.Header{"User-Agent": []string{userAgent}}

	return c.Do(req)
}

// Do executes an HTTP request against a target and returns the raw response.
// The caller is responsible for closing the response body.
func (c *UpstreamClient) Do(req *http.Request) (*model.ProxyResponse, error) {
	c.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = originOf(urlErr.URL)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// originOf reduces a URL to scheme://host so errors never carry a path or
// query.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host
}
