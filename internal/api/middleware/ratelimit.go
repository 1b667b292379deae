package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/metrics"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
)

// SetRateLimitHeaders writes the X-RateLimit-* headers for d.
func SetRateLimitHeaders(h http.Header, d security.Decision) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

// RespondRateLimited aborts the request with the 429 response for a denied decision.
func RespondRateLimited(c *gin.Context, d security.Decision) {
	SetRateLimitHeaders(c.Writer.Header(), d)
	c.Header("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":        "Too many requests",
		"limit":        d.Limit,
		"windowMs":     d.Window.Milliseconds(),
		"retryAfterMs": d.RetryAfter.Milliseconds(),
	})
}

// CheckRateLimit applies limiter to the request. When denied it records a
// RATE_LIMIT_EXCEEDED event for endpoint, writes the 429 response and
// returns false; the caller must stop handling the request.
func CheckRateLimit(c *gin.Context, state *security.State, limiter *security.Limiter, endpoint string) bool {
	d := limiter.Check(c.Request)
	metrics.ObserveRateLimit(d.Policy, d.Allowed)
	if d.Allowed {
		SetRateLimitHeaders(c.Writer.Header(), d)
		return true
	}
	state.Record(c.Request, security.RateLimitDetails{
		Endpoint:     endpoint,
		Policy:       d.Policy,
		Limit:        d.Limit,
		RetryAfterMs: d.RetryAfter.Milliseconds(),
	})
	RespondRateLimited(c, d)
	return false
}

// RateLimit returns middleware enforcing limiter for every request of a route or group.
func RateLimit(state *security.State, limiter *security.Limiter, endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CheckRateLimit(c, state, limiter, endpoint) {
			return
		}
		c.Next()
	}
}
