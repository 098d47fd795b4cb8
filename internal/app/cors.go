package app

import (
	"net/url"
	"strings"
)

// originAllowed reports whether origin matches one of the configured
// patterns. Patterns are full origins or hosts, optionally "*.example.com"
// or "localhost:*".
func originAllowed(patterns []string, origin string) bool {
	host := extractOriginHost(origin)
	for _, pattern := range patterns {
		if pattern == origin || matchOriginPattern(pattern, host) {
			return true
		}
	}
	return false
}

// extractOriginHost returns the "host[:port]" portion of an origin URL.
func extractOriginHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

func matchOriginPattern(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	if strings.HasSuffix(pattern, ":*") {
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}
