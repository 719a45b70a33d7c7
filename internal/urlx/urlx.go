// Package urlx provides URL canonicalization and matching helpers shared by
// the bundle model (duplicate detection) and the catalog client (event
// lookup). All functions are pure.
package urlx

import (
	"net/url"
	"strings"
)

// wwwRequired lists domains that redirect-loop without a www. prefix.
// It affects outbound link fixing only; comparison keys always strip www.
var wwwRequired = map[string]bool{
	"athlinks.com":    true,
	"halhigdon.com":   true,
	"parkrun.org.uk":  true,
	"runsignup.com":   true,
	"ultrasignup.com": true,
}

// Normalize canonicalizes a URL for equality comparison:
// lowercase host, strip a leading "www.", strip the trailing slash from the
// path, drop query string and fragment. The scheme is dropped entirely.
// Path case is preserved.
//
// Two URLs are considered "the same page" iff their normalized forms are
// string-equal.
func Normalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		// Not parseable as an absolute URL; fall back to a best-effort
		// string cleanup so dedup still behaves deterministically.
		s := strings.TrimSpace(rawURL)
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		host, path, _ := strings.Cut(s, "/")
		host = strings.TrimPrefix(strings.ToLower(host), "www.")
		if path == "" {
			return host
		}
		return host + "/" + strings.TrimSuffix(path, "/")
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.Path, "/")
	return host + path
}

// Host returns the normalized host portion of a URL (lowercased, www
// stripped), or "" if no host can be determined.
func Host(rawURL string) string {
	norm := Normalize(rawURL)
	host, _, _ := strings.Cut(norm, "/")
	return host
}

// HostsRelated reports whether two hosts are the same site: equal, or one is
// a dot-suffix subdomain of the other (kh.example.com vs example.com).
func HostsRelated(h1, h2 string) bool {
	h1 = strings.TrimPrefix(strings.ToLower(h1), "www.")
	h2 = strings.TrimPrefix(strings.ToLower(h2), "www.")
	if h1 == "" || h2 == "" {
		return false
	}
	if h1 == h2 {
		return true
	}
	return strings.HasSuffix(h1, "."+h2) || strings.HasSuffix(h2, "."+h1)
}

// MatchFlexible reports whether two URLs refer to the same page, tolerating
// related hosts (regional subdomains) but requiring an exact path match.
func MatchFlexible(u1, u2 string) bool {
	n1, n2 := Normalize(u1), Normalize(u2)
	if n1 == n2 {
		return true
	}

	h1, p1, _ := strings.Cut(n1, "/")
	h2, p2, _ := strings.Cut(n2, "/")
	return HostsRelated(h1, h2) && p1 == p2
}

// EnsureWWW rewrites an outbound URL to carry a www. prefix when its domain
// is known to require one. Comparison keys are unaffected.
func EnsureWWW(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := strings.ToLower(u.Host)
	if strings.HasPrefix(host, "www.") {
		return rawURL
	}
	if !wwwRequired[host] {
		return rawURL
	}
	u.Host = "www." + u.Host
	return u.String()
}
