package security

import (
	"net"
	"net/http"
	"strings"
)

// IPResolver extracts a best-effort client address from a request.
type IPResolver struct {
	// TrustProxy enables X-Forwarded-For / X-Real-IP. Only set it when the
	// portal is deployed behind a proxy that overwrites those headers.
	TrustProxy bool
}

// Resolve returns the client IP for r, or "" if none can be determined.
func (res IPResolver) Resolve(r *http.Request) string {
	if r == nil {
		return ""
	}
	if res.TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if first != "" {
				return first
			}
		}
		if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
			return real
		}
	}
	return remoteHost(r.RemoteAddr)
}

func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
