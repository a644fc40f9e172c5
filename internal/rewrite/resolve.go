package rewrite

import (
	"errors"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

var (
	errInvalidHost    = errors.New("invalid host")
	errInvalidPort    = errors.New("invalid port")
	errInvalidPercent = errors.New("invalid percent-encoding")
)

// specialPorts maps the URL standard's special schemes to their default port.
var specialPorts = map[string]string{
	"ftp":   "21",
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
}

// Percent-encode sets of the URL standard, beyond C0 controls and non-ASCII.
const (
	fragmentSet     = " \"<>`"
	specialQuerySet = " \"#<>'"
	pathSet         = " \"#<>?`{}"
	userinfoSet     = pathSet + "/:;=@[\\]^|"
)

// forbiddenHostChars may not appear in a domain after percent-decoding.
const forbiddenHostChars = " #%/:<>?@[\\]^|"

// Reference is an attribute value resolved the way a browser's URL parser
// resolves it.
type Reference struct {
	// Scheme is the lowercased scheme without the trailing colon.
	Scheme string
	// Host is host[:port] with the scheme's default port omitted. Empty for
	// non-special schemes such as data: or mailto:.
	Host string
	// Href is the serialized URL, identical to URL.href in a browser.
	Href string
}

func (r *Reference) String() string {
	return r.Href
}

// Resolve resolves ref against the origin of target. Special-scheme results
// are normalized like URL.href: tabs and newlines removed, backslashes read
// as slashes, dot segments (including %2e forms) removed, hosts lowercased
// and IDNA-encoded, default ports dropped, and the path, query and fragment
// percent-encoded with the standard's sets. Existing escapes are kept as is;
// a '%' not followed by two hex digits is rejected.
func Resolve(target *url.URL, ref string) (*Reference, error) {
	baseScheme := strings.ToLower(target.Scheme)
	baseHost, err := canonicalHost(baseScheme, target.Host)
	if err != nil {
		return nil, err
	}

	input := strings.TrimFunc(ref, func(r rune) bool { return r <= ' ' })
	input = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, input)

	scheme, rest, hasScheme := cutScheme(input)
	if hasScheme {
		if _, special := specialPorts[scheme]; !special {
			return &Reference{Scheme: scheme, Href: input}, nil
		}
	} else {
		scheme, rest = baseScheme, input
	}
	rest = backslashesToSlashes(rest)

	host, userinfo := baseHost, ""
	if (hasScheme && scheme != baseScheme) || strings.HasPrefix(rest, "//") {
		rest = strings.TrimLeft(rest, "/")
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		authority := rest[:end]
		rest = rest[end:]
		if i := strings.LastIndexByte(authority, '@'); i >= 0 {
			userinfo = encodeUserinfo(authority[:i])
			authority = authority[i+1:]
		}
		if host, err = canonicalHost(scheme, authority); err != nil {
			return nil, err
		}
	}

	rest, fragment, hasFragment := strings.Cut(rest, "#")
	path, query, hasQuery := strings.Cut(rest, "?")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = removeDotSegments(path)

	for _, part := range []string{userinfo, path, query, fragment} {
		if !validPercent(part) {
			return nil, errInvalidPercent
		}
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	if userinfo != "" {
		b.WriteString(userinfo)
		b.WriteByte('@')
	}
	b.WriteString(host)
	b.WriteString(percentEncode(path, pathSet))
	if hasQuery {
		b.WriteByte('?')
		b.WriteString(percentEncode(query, specialQuerySet))
	}
	if hasFragment {
		b.WriteByte('#')
		b.WriteString(percentEncode(fragment, fragmentSet))
	}

	return &Reference{Scheme: scheme, Host: host, Href: b.String()}, nil
}

// cutScheme splits "scheme:rest". The scheme is lowercased.
func cutScheme(s string) (scheme, rest string, ok bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		case i > 0 && c == ':':
			return strings.ToLower(s[:i]), s[i+1:], true
		default:
			return "", s, false
		}
	}
	return "", s, false
}

func backslashesToSlashes(s string) string {
	end := strings.IndexAny(s, "?#")
	if end < 0 {
		end = len(s)
	}
	return strings.ReplaceAll(s[:end], `\`, "/") + s[end:]
}

func encodeUserinfo(s string) string {
	user, pass, _ := strings.Cut(s, ":")
	out := percentEncode(user, userinfoSet)
	if pass != "" {
		out += ":" + percentEncode(pass, userinfoSet)
	}
	return out
}

// canonicalHost serializes host[:port] for scheme.
func canonicalHost(scheme, hostport string) (string, error) {
	host, port := hostport, ""
	if strings.HasPrefix(host, "[") {
		end := strings.IndexByte(host, ']')
		if end < 0 {
			return "", errInvalidHost
		}
		host, port = host[:end+1], host[end+1:]
		if port != "" {
			if port[0] != ':' {
				return "", errInvalidHost
			}
			port = port[1:]
		}
	} else if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host, port = host[:i], host[i+1:]
	}

	h, err := canonicalHostname(host)
	if err != nil {
		return "", err
	}
	p, err := canonicalPort(scheme, port)
	if err != nil {
		return "", err
	}
	if p != "" {
		return h + ":" + p, nil
	}
	return h, nil
}

func canonicalHostname(host string) (string, error) {
	if host == "" {
		return "", errInvalidHost
	}
	if strings.HasPrefix(host, "[") {
		addr, err := netip.ParseAddr(host[1 : len(host)-1])
		if err != nil || !addr.Is6() || addr.Zone() != "" {
			return "", errInvalidHost
		}
		return "[" + addr.String() + "]", nil
	}

	decoded, err := url.PathUnescape(host)
	if err != nil {
		return "", errInvalidHost
	}
	if isASCII(decoded) {
		decoded = strings.ToLower(decoded)
	} else if decoded, err = idna.Lookup.ToASCII(decoded); err != nil {
		return "", errInvalidHost
	}

	for i := 0; i < len(decoded); i++ {
		c := decoded[i]
		if c < 0x20 || c == 0x7f || strings.IndexByte(forbiddenHostChars, c) >= 0 {
			return "", errInvalidHost
		}
	}
	return decoded, nil
}

func canonicalPort(scheme, port string) (string, error) {
	if port == "" {
		return "", nil
	}
	for i := 0; i < len(port); i++ {
		if port[i] < '0' || port[i] > '9' {
			return "", errInvalidPort
		}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n > 65535 {
		return "", errInvalidPort
	}
	p := strconv.Itoa(n)
	if specialPorts[scheme] == p {
		return "", nil
	}
	return p, nil
}

// removeDotSegments resolves "." and ".." segments of an absolute path.
func removeDotSegments(p string) string {
	segments := strings.Split(p[1:], "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		last := i == len(segments)-1
		switch {
		case isDoubleDotSegment(seg):
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		case isDotSegment(seg):
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/")
}

func isDotSegment(seg string) bool {
	return seg == "." || strings.EqualFold(seg, "%2e")
}

func isDoubleDotSegment(seg string) bool {
	switch strings.ToLower(seg) {
	case "..", ".%2e", "%2e.", "%2e%2e":
		return true
	}
	return false
}

const upperhex = "0123456789ABCDEF"

func percentEncode(s, set string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e || strings.IndexByte(set, c) >= 0 {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func validPercent(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
			return false
		}
		i += 2
	}
	return true
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7e {
			return false
		}
	}
	return true
}
