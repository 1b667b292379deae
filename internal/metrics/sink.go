package metrics

import "github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"

// EventSink counts security events as they are appended to the event log.
type EventSink struct{}

// Observe implements security.Sink.
func (EventSink) Observe(ev security.SecurityEvent) {
	IncSecurityEvent(string(ev.Type))
}
