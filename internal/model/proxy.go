// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// ProxyRequest is a browser request for a target URL, on either endpoint.
type ProxyRequest struct {
	Ctx context.Context
	// Target is the absolute http(s) URL to fetch.
	Target *url.URL
	// UserAgent is the only client header forwarded upstream.
	UserAgent string
	// ProxyHost is the host:port the browser reaches the proxy on.
	ProxyHost string
}

// ProxyResponse is an upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Page is a rewritten HTML document.
type Page struct {
	HTML string
	// UpstreamStatus is the status code the target returned for the document.
	UpstreamStatus int
}
