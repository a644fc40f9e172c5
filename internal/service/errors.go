// Package service implements page rewriting and resource relaying.
package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"rewrite-proxy-go/internal/client"
)

var (
	// ErrMissingParameter is returned when the request carries no url parameter.
	ErrMissingParameter = errors.New("url parameter required")
	// ErrInvalidParameter is returned when the url parameter is not an absolute http(s) URL.
	ErrInvalidParameter = errors.New("url parameter must be an absolute http or https URL")
	// ErrForbidden is returned when the target, or a redirect from it, is denylisted.
	ErrForbidden = errors.New("this site cannot be proxied")
)

// UpstreamFetchError reports a failure reaching or reading the target.
type UpstreamFetchError struct {
	Err error
}

func (e *UpstreamFetchError) Error() string {
	return "fetch failed: " + e.Err.Error()
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// ParseTarget validates a raw url parameter and returns the absolute target URL.
func ParseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissingParameter
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidParameter, raw)
	}
	return u, nil
}

// upstreamError classifies an upstream client error.
func upstreamError(err error) error {
	if errors.Is(err, client.ErrBlockedRedirect) {
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return &UpstreamFetchError{Err: err}
}
