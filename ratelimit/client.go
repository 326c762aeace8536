package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownClient is the identity used when no proxy header names the caller.
const UnknownClient = "unknown"

// ClientIdentifier resolves the caller from proxy headers: the first
// X-Forwarded-For entry, then CF-Connecting-IP, then X-Real-IP. These headers
// are client-controlled unless a trusted reverse proxy overwrites them.
func ClientIdentifier(h http.Header) string {
	if xff := strings.TrimSpace(h.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if cf := strings.TrimSpace(h.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	if xri := strings.TrimSpace(h.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return UnknownClient
}
