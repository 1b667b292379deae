package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
)

// PanicHook observes a recovered panic before the 500 response is written.
type PanicHook func(c *gin.Context, recovered interface{})

// RecordPanics returns a hook that stores each panic as an API_ERROR event,
// keyed by the matched route (or the raw path for unmatched requests).
func RecordPanics(state *security.State) PanicHook {
	return func(c *gin.Context, recovered interface{}) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = SanitizePath(c.Request.URL.Path)
		}
		state.Record(c.Request, security.APIErrorDetails{
			Endpoint: endpoint,
			Error:    fmt.Sprintf("panic: %v", recovered),
		})
	}
}

// Recovery turns a panic into a generic JSON 500 so internal details never
// reach the client. The request-scoped logger gets the panic value; verbose
// adds the stack and sanitized request metadata. Hooks run in order.
func Recovery(verbose bool, hooks ...PanicHook) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := logrus.Fields{
				"method": c.Request.Method,
				"path":   SanitizePath(c.Request.URL.Path),
			}
			if verbose {
				fields["headers"] = SanitizeHeaders(c.Request.Header)
				GetRequestLogger(c).WithFields(fields).Errorf("PANIC: %v\nStacktrace:\n%s", rec, debug.Stack())
			} else {
				GetRequestLogger(c).WithFields(fields).Errorf("PANIC: %v", rec)
			}
			for _, hook := range hooks {
				hook(c, rec)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}()
		c.Next()
	}
}
