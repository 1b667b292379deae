package security

import (
	"net/url"
	"strings"
)

// Inspection modes for the suspicious request detector.
const (
	InspectionOff     = "off"
	InspectionMonitor = "monitor"
	InspectionBlock   = "block"
)

type suspiciousPattern struct {
	needle string
	reason string
}

var suspiciousPatterns = []suspiciousPattern{
	{"<script", "script tag in request URI"},
	{"javascript:", "javascript scheme in request URI"},
	{"../", "path traversal sequence"},
	{"..\\", "path traversal sequence"},
	{"/etc/passwd", "sensitive file access"},
	{"union select", "SQL injection pattern"},
	{"' or '1'='1", "SQL injection pattern"},
	{"\x00", "NUL byte in request URI"},
}

// InspectURI looks for common attack payloads in a raw request URI. It
// checks both the raw and the percent-decoded form and returns the first
// reason found.
func InspectURI(rawURI string) (string, bool) {
	if rawURI == "" {
		return "", false
	}
	candidates := []string{strings.ToLower(rawURI)}
	if decoded, err := url.QueryUnescape(rawURI); err == nil && decoded != rawURI {
		candidates = append(candidates, strings.ToLower(decoded))
	}
	for _, c := range candidates {
		// "+" is a space in query strings
		c = strings.ReplaceAll(c, "+", " ")
		for _, p := range suspiciousPatterns {
			if strings.Contains(c, p.needle) {
				return p.reason, true
			}
		}
	}
	return "", false
}

// NormalizeInspectionMode maps unknown values to monitor.
func NormalizeInspectionMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case InspectionOff, "disabled":
		return InspectionOff
	case InspectionBlock:
		return InspectionBlock
	default:
		return InspectionMonitor
	}
}
