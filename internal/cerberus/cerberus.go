// Package cerberus runs the portal's per-request security pipeline in front
// of every page route.
package cerberus

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/api/middleware"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/logger"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/metrics"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/session"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/util"
)

// DefaultExcludedPrefixes are the paths the pipeline never touches.
var DefaultExcludedPrefixes = []string{"/api", "/assets", "/_next/static", "/_next/image", "/favicon.ico"}

// SessionRenewer reissues a session token with a fresh expiry and writes the
// matching cookie.
type SessionRenewer interface {
	Renew(ctx context.Context, token string) (string, time.Time, error)
	SetCookie(w http.ResponseWriter, token string, expires time.Time)
}

// Options configures the pipeline.
type Options struct {
	ExcludedPrefixes []string
	Headers          middleware.SecurityHeadersConfig
	// Sessions may be nil, in which case session cookies are left alone.
	Sessions SessionRenewer
}

// Cerberus runs header injection, the IP block list, URI inspection, CSRF
// validation and session refresh.
type Cerberus struct {
	state    *security.State
	excluded []string
	headers  middleware.SecurityHeadersConfig
	sessions SessionRenewer
}

// New creates a new Cerberus instance.
func New(state *security.State, opts Options) *Cerberus {
	excluded := opts.ExcludedPrefixes
	if excluded == nil {
		excluded = DefaultExcludedPrefixes
	}
	return &Cerberus{
		state:    state,
		excluded: excluded,
		headers:  opts.Headers,
		sessions: opts.Sessions,
	}
}

// Excluded reports whether path falls under an excluded prefix. Prefixes
// match on segment boundaries, so "/api" covers "/api/x" but not "/apidocs".
func (c *Cerberus) Excluded(path string) bool {
	for _, prefix := range c.excluded {
		prefix = strings.TrimSuffix(prefix, "/")
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
		// file-like prefixes such as /favicon.ico
		if strings.Contains(prefix, ".") && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware returns a Gin middleware that enforces the pipeline.
func (c *Cerberus) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		r := ctx.Request
		if c.Excluded(r.URL.Path) {
			ctx.Next()
			return
		}

		middleware.ApplySecurityHeaders(ctx.Writer.Header(), c.headers)

		ip := c.state.IPs.Resolve(r)
		if rule, blocked := c.state.Blocklist.Match(ip); blocked {
			c.state.Record(r, security.BlockedIPDetails{Path: r.URL.Path, Rule: rule})
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		if c.state.InspectionMode != security.InspectionOff {
			if reason, found := security.InspectURI(r.RequestURI); found {
				c.state.Record(r, security.SuspiciousRequestDetails{Reason: reason, Mode: c.state.InspectionMode})
				if c.state.InspectionMode == security.InspectionBlock {
					ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Suspicious request blocked"})
					return
				}
			}
		}

		if !c.state.CSRF.Validate(r) {
			c.state.Record(r, security.CSRFDetails{
				Path:   r.URL.Path,
				Method: r.Method,
				Origin: util.Truncate(security.RequestOrigin(r), 200),
			})
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid request origin"})
			return
		}

		if r.Method == http.MethodGet {
			c.refreshSession(ctx)
		}

		ctx.Next()
	}
}

func (c *Cerberus) refreshSession(ctx *gin.Context) {
	if c.sessions == nil {
		return
	}
	cookie, err := ctx.Request.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	token, expires, err := c.sessions.Renew(ctx.Request.Context(), cookie.Value)
	if err != nil {
		session.ClearCookie(ctx.Writer)
		metrics.IncSessionRefresh("cleared")
		logger.Log().WithFields(logrus.Fields{
			"source": "session",
			"path":   util.SanitizeForLog(ctx.Request.URL.Path),
			"error":  err.Error(),
		}).Warn("session refresh failed, cookie cleared")
		return
	}
	c.sessions.SetCookie(ctx.Writer, token, expires)
	metrics.IncSessionRefresh("renewed")
}
