package wiki

import (
	"net/url"
	"strings"
)

// namespaceMarkers identify non-article pages. "talk:" also covers the
// per-namespace talk pages such as "user_talk:".
var namespaceMarkers = []string{
	"special:",
	"talk:",
	"user:",
	"file:",
	"image:",
	"category:",
	"template:",
	"help:",
	"portal:",
	"wikipedia:",
	"mediawiki:",
	"draft:",
	"module:",
}

// ValidateURL reports whether raw is an http(s) URL of a Wikipedia article.
func ValidateURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host != "wikipedia.org" && !strings.HasSuffix(host, ".wikipedia.org") {
		return false
	}

	// u.Path is already percent-decoded.
	path := strings.ToLower(u.Path)
	if !strings.Contains(path, "/wiki/") {
		return false
	}
	for _, marker := range namespaceMarkers {
		if strings.Contains(path, marker) {
			return false
		}
	}
	return true
}
