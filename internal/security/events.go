package security

import (
	"time"
)

// EventType is the closed set of security event kinds surfaced on the admin dashboard.
type EventType string

const (
	EventRateLimitExceeded    EventType = "RATE_LIMIT_EXCEEDED"
	EventSuspiciousRequest    EventType = "SUSPICIOUS_REQUEST"
	EventAPIError             EventType = "API_ERROR"
	EventBlockedIPAccess      EventType = "BLOCKED_IP_ACCESS"
	EventCSRFValidationFailed EventType = "CSRF_VALIDATION_FAILED"
)

// EventTypes lists every known event kind in dashboard order.
var EventTypes = []EventType{
	EventRateLimitExceeded,
	EventSuspiciousRequest,
	EventAPIError,
	EventBlockedIPAccess,
	EventCSRFValidationFailed,
}

// Valid reports whether t is one of the known event kinds.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// EventDetails is the kind-specific payload of a SecurityEvent. The event
// type is taken from the payload so the two can never disagree.
type EventDetails interface {
	Kind() EventType
}

// RateLimitDetails is attached to RATE_LIMIT_EXCEEDED events.
type RateLimitDetails struct {
	Endpoint     string `json:"endpoint"`
	Policy       string `json:"policy,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

func (RateLimitDetails) Kind() EventType { return EventRateLimitExceeded }

// SuspiciousRequestDetails is attached to SUSPICIOUS_REQUEST events.
type SuspiciousRequestDetails struct {
	Reason string `json:"reason"`
	Mode   string `json:"mode,omitempty"`
}

func (SuspiciousRequestDetails) Kind() EventType { return EventSuspiciousRequest }

// APIErrorDetails is attached to API_ERROR events. Error holds the internal
// message and is only ever shown to operators.
type APIErrorDetails struct {
	Endpoint string `json:"endpoint"`
	Error    string `json:"error"`
}

func (APIErrorDetails) Kind() EventType { return EventAPIError }

// BlockedIPDetails is attached to BLOCKED_IP_ACCESS events.
type BlockedIPDetails struct {
	Path string `json:"path"`
	Rule string `json:"rule,omitempty"`
}

func (BlockedIPDetails) Kind() EventType { return EventBlockedIPAccess }

// CSRFDetails is attached to CSRF_VALIDATION_FAILED events.
type CSRFDetails struct {
	Path   string `json:"path"`
	Method string `json:"method"`
	Origin string `json:"origin,omitempty"`
}

func (CSRFDetails) Kind() EventType { return EventCSRFValidationFailed }

// SecurityEvent is an immutable record of a policy decision or anomaly.
type SecurityEvent struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Type      EventType    `json:"type"`
	IP        string       `json:"ip"`
	UserAgent string       `json:"userAgent"`
	Path      string       `json:"path"`
	Details   EventDetails `json:"details,omitempty"`
}

// Summary aggregates the retained events for the dashboard header cards.
type Summary struct {
	RateLimitViolations int `json:"rateLimitViolations"`
	SuspiciousRequests  int `json:"suspiciousRequests"`
	APIErrors           int `json:"apiErrors"`
	LastHour            int `json:"lastHour"`
}
