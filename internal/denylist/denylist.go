// Package denylist decides whether a target origin may be proxied.
package denylist

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultDomains are always blocked, regardless of configuration.
var defaultDomains = []string{
	"youtube.com",
	"youtu.be",
	"netflix.com",
	"spotify.com",
}

// Denylist is an immutable set of blocked domains. A host is blocked when it
// equals an entry or is a subdomain of one. It is safe for concurrent use.
type Denylist struct {
	domains map[string]struct{}
}

// file is the on-disk YAML shape of an extra denylist.
type file struct {
	Domains []string `yaml:"domains"`
}

// New builds a Denylist from the default domains plus extra.
// Empty entries are ignored; entries are normalized like hosts.
func New(extra ...string) *Denylist {
	d := &Denylist{domains: make(map[string]struct{}, len(defaultDomains)+len(extra))}
	for _, domain := range defaultDomains {
		d.domains[domain] = struct{}{}
	}
	for _, domain := range extra {
		if n := normalizeHost(domain); n != "" {
			d.domains[n] = struct{}{}
		}
	}
	return d
}

// Default returns a Denylist containing only the compiled-in domains.
func Default() *Denylist {
	return New()
}

// Load builds a Denylist from the defaults, extra, and the domains listed in
// the YAML file at path. An empty path skips the file.
func Load(path string, extra []string) (*Denylist, error) {
	if path == "" {
		return New(extra...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("denylist: read %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("denylist: parse %s: %w", path, err)
	}

	all := make([]string, 0, len(extra)+len(f.Domains))
	all = append(all, extra...)
	all = append(all, f.Domains...)
	return New(all...), nil
}

// Blocked reports whether the host of u is denylisted.
func (d *Denylist) Blocked(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := normalizeHost(u.Hostname())
	for host != "" {
		if _, ok := d.domains[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
	return false
}

// IsBlocked parses raw and reports whether its host is denylisted.
// Input that does not parse is reported as not blocked.
func (d *Denylist) IsBlocked(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return d.Blocked(u)
}

// Entries returns the blocked domains in sorted order.
func (d *Denylist) Entries() []string {
	out := make([]string, 0, len(d.domains))
	for domain := range d.domains {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of blocked domains.
func (d *Denylist) Len() int {
	return len(d.domains)
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "*.")
	return strings.TrimSuffix(host, ".")
}
