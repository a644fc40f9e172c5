package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/net/html/charset"

	"rewrite-proxy-go/internal/client"
	"rewrite-proxy-go/internal/config"
	"rewrite-proxy-go/internal/denylist"
	"rewrite-proxy-go/internal/metrics"
	"rewrite-proxy-go/internal/model"
	"rewrite-proxy-go/internal/rewrite"
)

// ErrPageTooLarge is returned when a document exceeds upstream.max_page_bytes.
var ErrPageTooLarge = errors.New("document too large")

// PageService fetches HTML documents and rewrites them for the proxy.
type PageService struct {
	client   *client.UpstreamClient
	deny     *denylist.Denylist
	rewriter *rewrite.Rewriter
	maxBytes int64
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewPageService creates a PageService.
// The metrics parameter is optional; pass nil to disable recording.
func NewPageService(c *client.UpstreamClient, deny *denylist.Denylist, rw *rewrite.Rewriter, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *PageService {
	return &PageService{
		client:   c,
		deny:     deny,
		rewriter: rw,
		maxBytes: cfg.Upstream.MaxPageBytes,
		timeout:  cfg.Upstream.Timeout(),
		logger:   logger.With("component", "page_service"),
		metrics:  m,
	}
}

// Render fetches pr.Target and returns the rewritten document. The upstream
// status code does not affect the outcome; any body is parsed as HTML.
// Fetching and reading the document share one upstream.timeout_seconds
// deadline.
func (s *PageService) Render(pr *model.ProxyRequest) (*model.Page, error) {
	if s.deny.Blocked(pr.Target) {
		if s.metrics != nil {
			s.metrics.BlockedRequests.WithLabelValues("page").Inc()
		}
		return nil, ErrForbidden
	}

	ctx := pr.Ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.client.Get(ctx, pr.Target, pr.UserAgent)
	if err != nil {
		return nil, upstreamError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body io.Reader = resp.Body
	if s.maxBytes > 0 {
		body = &limitedReader{r: body, max: s.maxBytes}
	}
	body, err = charset.NewReader(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &UpstreamFetchError{Err: fmt.Errorf("decode body: %w", err)}
	}

	res, err := s.rewriter.Rewrite(body, pr.Target, pr.ProxyHost)
	if err != nil {
		return nil, &UpstreamFetchError{Err: err}
	}

	s.logger.Debug("page rewritten",
		"host", pr.Target.Host,
		"upstream_status", resp.StatusCode,
		"attributes_rewritten", res.Rewritten,
	)
	if s.metrics != nil {
		s.metrics.PagesRewritten.Inc()
		s.metrics.AttributesRewritten.Add(float64(res.Rewritten))
	}

	return &model.Page{HTML: res.HTML, UpstreamStatus: resp.StatusCode}, nil
}

// limitedReader fails with ErrPageTooLarge once more than max bytes are read.
type limitedReader struct {
	r    io.Reader
	max  int64
	read int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		return n, fmt.Errorf("%w: exceeds %d bytes", ErrPageTooLarge, l.max)
	}
	return n, err
}
