package auth

import (
	"net/url"
	"path"
	"slices"
	"strings"
)

// cleanPath roots p at "/" and collapses duplicate slashes, dot segments
// and any trailing slash. A blank p stays blank.
func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return path.Clean("/" + p)
}

// routePath mounts an endpoint path under the server base path.
func routePath(base, p string) string {
	return path.Join("/", strings.TrimSpace(base), strings.TrimSpace(p))
}

// originAllowed reports whether a browser Origin may make state-changing
// calls. A missing Origin or an empty trust list allows the request.
// Trust entries are "*", an exact origin, or "scheme://*.suffix".
func originAllowed(origin string, trusted []string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" || len(trusted) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return slices.ContainsFunc(trusted, func(entry string) bool {
		return originMatches(strings.TrimSpace(entry), origin, u)
	})
}

func originMatches(entry, origin string, u *url.URL) bool {
	if entry == "*" || strings.EqualFold(entry, origin) {
		return true
	}
	pattern, err := url.Parse(entry)
	if err != nil || !strings.EqualFold(pattern.Scheme, u.Scheme) {
		return false
	}
	suffix, wildcard := strings.CutPrefix(strings.ToLower(pattern.Host), "*")
	return wildcard && strings.HasPrefix(suffix, ".") && strings.HasSuffix(strings.ToLower(u.Host), suffix)
}
