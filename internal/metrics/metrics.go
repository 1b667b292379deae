package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	securityEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_security_events_total",
		Help: "Total number of security events recorded, by event type",
	}, []string{"type"})
	rateLimitDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_rate_limit_decisions_total",
		Help: "Total number of rate limit checks, by policy and decision",
	}, []string{"policy", "decision"})
	sessionRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_session_refresh_total",
		Help: "Total number of session cookie refresh attempts, by result",
	}, []string{"result"})
	sweptBucketsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_rate_limit_buckets_swept_total",
		Help: "Total number of expired rate limit buckets removed by the janitor",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(securityEventsTotal, rateLimitDecisionsTotal, sessionRefreshTotal, sweptBucketsTotal)
}

// IncSecurityEvent increments the event counter for eventType.
func IncSecurityEvent(eventType string) {
	securityEventsTotal.WithLabelValues(eventType).Inc()
}

// ObserveRateLimit counts one rate limit decision.
func ObserveRateLimit(policy string, allowed bool) {
	decision := "allow"
	if !allowed {
		decision = "deny"
	}
	rateLimitDecisionsTotal.WithLabelValues(policy, decision).Inc()
}

// IncSessionRefresh counts a session refresh with result "renewed" or "cleared".
func IncSessionRefresh(result string) {
	sessionRefreshTotal.WithLabelValues(result).Inc()
}

// AddSweptBuckets adds n removed buckets.
func AddSweptBuckets(n int) {
	if n > 0 {
		sweptBucketsTotal.Add(float64(n))
	}
}
