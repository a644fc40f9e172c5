// Package rewrite turns target-site resource references into proxy references.
//
// The same Rule drives the server-side document rewrite and the generated
// client-side Monitor Script, so both apply identical semantics.
package rewrite

import (
	"net/url"
	"strings"
)

// Rule describes how resource references are routed through the relay.
type Rule struct {
	// ProxyPath is the relay endpoint path, e.g. "/proxy".
	ProxyPath string
	// Param is the relay query parameter carrying the absolute target URL.
	Param string
	// Attributes are rewritten on every element that carries them.
	Attributes []string
	// SkipTags lists elements whose attributes are never rewritten.
	SkipTags []string
	// Schemes lists the resolved URL schemes that are proxied. References
	// resolving to any other scheme (data:, javascript:, mailto:) are kept.
	Schemes []string
}

// DefaultRule returns the rule used by the /proxy relay endpoint.
func DefaultRule() Rule {
	return Rule{
		ProxyPath:  "/proxy",
		Param:      "url",
		Attributes: []string{"src", "href"},
		SkipTags:   []string{"base"},
		Schemes:    []string{"http", "https"},
	}
}

// Prefix returns the leading part of every proxied reference, e.g. "/proxy?url=".
func (r Rule) Prefix() string {
	return r.ProxyPath + "?" + r.Param + "="
}

// Selector returns the CSS selector matching elements carrying any rewritten attribute.
func (r Rule) Selector() string {
	parts := make([]string, len(r.Attributes))
	for i, attr := range r.Attributes {
		parts[i] = "[" + attr + "]"
	}
	return strings.Join(parts, ",")
}

// Proxied returns the relay reference for an absolute URL.
func (r Rule) Proxied(absolute string) string {
	return r.Prefix() + Escape(absolute)
}

// IsProxied reports whether value is already a root-relative relay reference.
func (r Rule) IsProxied(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), r.Prefix())
}

// Rewrite applies the rule to an attribute value. It resolves value against
// the origin of target and returns the relay reference when the resolved host
// differs from proxyHost. The second result is false when value is returned
// unchanged: empty and fragment-only values, values already proxied, values
// on the proxy host, non-proxied schemes and malformed URLs.
func (r Rule) Rewrite(value string, target *url.URL, proxyHost string) (string, bool) {
	v := strings.TrimSpace(value)
	if v == "" || strings.HasPrefix(v, "#") || r.IsProxied(v) {
		return value, false
	}

	abs, err := Resolve(target, v)
	if err != nil {
		return value, false
	}
	if !r.proxiesScheme(abs.Scheme) {
		return value, false
	}
	if abs.Host == strings.ToLower(proxyHost) {
		return value, false
	}

	return r.Proxied(abs.Href), true
}

func (r Rule) proxiesScheme(scheme string) bool {
	for _, s := range r.Schemes {
		if s == scheme {
			return true
		}
	}
	return false
}

func (r Rule) skips(tag string) bool {
	for _, t := range r.SkipTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Origin returns scheme://host[:port] of u with the host normalized and the
// scheme's default port dropped, matching a browser's URL.origin.
func Origin(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host, err := canonicalHost(scheme, u.Host)
	if err != nil {
		host = strings.ToLower(u.Host)
	}
	return scheme + "://" + host
}

// Escape percent-encodes s for use as a query value. Only A-Z a-z 0-9 - _ . ~
// are left as is; spaces become %20.
func Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
