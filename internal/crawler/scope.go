package crawler

import (
	"errors"
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var errNotAbsolute = errors.New("not an absolute http(s) URL")

// DomainMatch selects how a candidate host is compared with the start URL's
// host when same-domain crawling is enabled.
type DomainMatch string

const (
	// MatchExact accepts only the origin host itself, port included.
	MatchExact DomainMatch = "exact"

	// MatchSubdomain accepts the origin host and any host below it
	// ("docs.example.com" for origin "example.com"). The suffix must start
	// at a label boundary.
	MatchSubdomain DomainMatch = "subdomain"

	// MatchSite accepts any host with the same registrable domain
	// (eTLD+1) as the origin, according to the public suffix list.
	MatchSite DomainMatch = "site"

	// MatchContains accepts any host containing the origin host as a
	// substring. It admits unrelated hosts such as "evil-example.com" for
	// "example.com" and must be requested explicitly.
	MatchContains DomainMatch = "contains"
)

// ParseDomainMatch converts s to a DomainMatch. An empty string yields
// MatchExact.
func ParseDomainMatch(s string) (DomainMatch, error) {
	switch m := DomainMatch(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MatchExact, nil
	case MatchExact, MatchSubdomain, MatchSite, MatchContains:
		return m, nil
	default:
		return "", ErrInvalidDomainMatch
	}
}

// ScopeFilter decides whether a discovered link may be offered to the
// Frontier. It is a pure predicate over its inputs and its fixed settings.
type ScopeFilter struct {
	match DomainMatch

	// ignorePatterns are path globs that are never crawled.
	ignorePatterns []string

	// followPatterns, when non-empty, restrict crawling to matching paths.
	followPatterns []string
}

// ScopeOption configures a ScopeFilter.
type ScopeOption func(*ScopeFilter)

// WithDomainMatch sets the host comparison used for same-domain crawls.
func WithDomainMatch(m DomainMatch) ScopeOption {
	return func(s *ScopeFilter) {
		if m != "" {
			s.match = m
		}
	}
}

// WithIgnorePatterns sets path globs to skip, e.g. "/admin/*" or "*.pdf".
func WithIgnorePatterns(patterns []string) ScopeOption {
	return func(s *ScopeFilter) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets path globs that candidates must match.
func WithFollowPatterns(patterns []string) ScopeOption {
	return func(s *ScopeFilter) {
		s.followPatterns = patterns
	}
}

// NewScopeFilter returns a ScopeFilter using exact host matching unless
// configured otherwise.
func NewScopeFilter(opts ...ScopeOption) *ScopeFilter {
	s := &ScopeFilter{match: MatchExact}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Eligible reports whether candidate may be admitted at candDepth.
//
// Candidates deeper than depthLimit are rejected. With sameDomain set, the
// candidate host must match originHost under the filter's DomainMatch.
// Candidates that do not parse as absolute http(s) URLs are rejected rather
// than reported as errors.
func (s *ScopeFilter) Eligible(candidate, originHost string, sameDomain bool, candDepth, depthLimit int) bool {
	if candDepth > depthLimit {
		return false
	}

	u, err := parseAbsolute(candidate)
	if err != nil {
		return false
	}

	if sameDomain && !s.hostMatches(hostKey(u), strings.ToLower(originHost)) {
		return false
	}

	return s.pathAllowed(u.EscapedPath())
}

func (s *ScopeFilter) hostMatches(host, origin string) bool {
	switch s.match {
	case MatchSubdomain:
		h, o := stripPort(host), stripPort(origin)
		return h == o || strings.HasSuffix(h, "."+o)
	case MatchSite:
		h, o := stripPort(host), stripPort(origin)
		if h == o {
			return true
		}
		hostSite, err := publicsuffix.EffectiveTLDPlusOne(h)
		if err != nil {
			return false
		}
		originSite, err := publicsuffix.EffectiveTLDPlusOne(o)
		if err != nil {
			return false
		}
		return hostSite == originSite
	case MatchContains:
		return strings.Contains(stripPort(host), stripPort(origin))
	default:
		return host == origin
	}
}

// pathAllowed applies ignore patterns first, then follow patterns.
func (s *ScopeFilter) pathAllowed(p string) bool {
	if p == "" {
		p = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern matches a URL path against a glob.
//
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns use path.Match, and a pattern without a slash is also
//     tried against the last path segment
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*."); ok {
		if strings.HasSuffix(p, "."+ext) {
			return true
		}
	}

	if matched, err := path.Match(pattern, p); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(p)); err == nil && matched {
			return true
		}
	}

	return false
}

// NormalizeURL returns the form of raw used for deduplication. It
// lowercases the scheme and host, strips the fragment and any default port,
// and turns an empty path into "/". Only absolute http(s) URLs are accepted.
func NormalizeURL(raw string) (string, error) {
	u, err := parseAbsolute(raw)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = hostKey(u)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String(), nil
}

// HostOf returns the normalized host (with a non-default port) of an
// absolute URL.
func HostOf(raw string) (string, error) {
	u, err := parseAbsolute(raw)
	if err != nil {
		return "", err
	}
	return hostKey(u), nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" || u.Hostname() == "" {
		return nil, errNotAbsolute
	}
	return u, nil
}

// hostKey lowercases the host and drops the port when it is the scheme's
// default.
func hostKey(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	switch {
	case port == "":
	case port == "80" && strings.EqualFold(u.Scheme, "http"):
	case port == "443" && strings.EqualFold(u.Scheme, "https"):
	default:
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		// bare IPv6 literal
		return "[" + host + "]"
	}
	return host
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.Trim(host, "[]")
}
