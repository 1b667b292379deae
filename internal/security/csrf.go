package security

import (
	"net/http"
	"net/url"
	"strings"
)

// CSRFValidator checks that state-changing requests originate from a trusted origin.
type CSRFValidator struct {
	trusted map[string]struct{}
}

// NewCSRFValidator builds a validator for the given origins
// (e.g. "https://developer.example.com"). Unparsable entries are ignored.
func NewCSRFValidator(origins []string) *CSRFValidator {
	v := &CSRFValidator{trusted: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if n, ok := normalizeOrigin(o); ok {
			v.trusted[n] = struct{}{}
		}
	}
	return v
}

// IsStateChanging reports whether method needs origin validation.
func IsStateChanging(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

// Validate reports whether r may proceed. Safe methods always pass; a
// state-changing request needs an Origin (or, failing that, a Referer) whose
// scheme, host and port match a trusted origin.
func (v *CSRFValidator) Validate(r *http.Request) bool {
	if !IsStateChanging(r.Method) {
		return true
	}
	origin := RequestOrigin(r)
	if origin == "" {
		return false
	}
	n, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	_, trusted := v.trusted[n]
	return trusted
}

// RequestOrigin returns the Origin header, or the origin part of the Referer
// when Origin is absent.
func RequestOrigin(r *http.Request) string {
	if o := strings.TrimSpace(r.Header.Get("Origin")); o != "" {
		return o
	}
	ref := strings.TrimSpace(r.Header.Get("Referer"))
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func normalizeOrigin(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, true
}
