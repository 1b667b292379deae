package security

import (
	"sync"
	"time"
)

// DefaultEventCapacity bounds the in-process event log when no capacity is configured.
const DefaultEventCapacity = 1000

// Sink observes events after they are appended to the log.
type Sink interface {
	Observe(ev SecurityEvent)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ev SecurityEvent)

// Observe calls f(ev).
func (f SinkFunc) Observe(ev SecurityEvent) { f(ev) }

// EventLog is an append-only ring buffer of security events. Once full, the
// oldest event is evicted on every append.
type EventLog struct {
	mu    sync.RWMutex
	buf   []SecurityEvent
	start int
	size  int
	sinks []Sink
}

// NewEventLog creates a log retaining at most capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventLog{buf: make([]SecurityEvent, capacity)}
}

// AddSink registers an observer. Sinks are called outside the log lock, in
// registration order, on the appending goroutine.
func (l *EventLog) AddSink(s Sink) {
	if s == nil {
		return
	}
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

// Append stores ev, evicting the oldest event when the log is full.
func (l *EventLog) Append(ev SecurityEvent) {
	l.mu.Lock()
	capacity := len(l.buf)
	if l.size < capacity {
		l.buf[(l.start+l.size)%capacity] = ev
		l.size++
	} else {
		l.buf[l.start] = ev
		l.start = (l.start + 1) % capacity
	}
	sinks := l.sinks
	l.mu.Unlock()

	for _, s := range sinks {
		s.Observe(ev)
	}
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity returns the retention bound.
func (l *EventLog) Capacity() int {
	return len(l.buf)
}

// Snapshot returns the retained events, oldest first.
func (l *EventLog) Snapshot() []SecurityEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]SecurityEvent, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)]
	}
	return out
}

// Recent returns at most n events, newest first.
func (l *EventLog) Recent(n int) []SecurityEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n > l.size {
		n = l.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]SecurityEvent, n)
	for i := 0; i < n; i++ {
		out[i] = l.buf[(l.start+l.size-1-i)%len(l.buf)]
	}
	return out
}

// Summary counts the retained events by kind and those recorded within the
// hour preceding now.
func (l *EventLog) Summary(now time.Time) Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var s Summary
	for i := 0; i < l.size; i++ {
		ev := l.buf[(l.start+i)%len(l.buf)]
		switch ev.Type {
		case EventRateLimitExceeded:
			s.RateLimitViolations++
		case EventSuspiciousRequest:
			s.SuspiciousRequests++
		case EventAPIError:
			s.APIErrors++
		}
		if now.Sub(ev.Timestamp) < time.Hour {
			s.LastHour++
		}
	}
	return s
}

// CountByType returns the number of retained events of type t.
func (l *EventLog) CountByType(t EventType) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for i := 0; i < l.size; i++ {
		if l.buf[(l.start+i)%len(l.buf)].Type == t {
			n++
		}
	}
	return n
}

// Prune drops every event recorded before cutoff and returns how many were
// removed. Concurrent appends can land slightly out of time order, so the
// whole buffer is scanned and the survivors are compacted in insertion order.
func (l *EventLog) Prune(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	capacity := len(l.buf)
	kept := 0
	for i := 0; i < l.size; i++ {
		ev := l.buf[(l.start+i)%capacity]
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		l.buf[(l.start+kept)%capacity] = ev
		kept++
	}
	removed := l.size - kept
	for i := kept; i < l.size; i++ {
		l.buf[(l.start+i)%capacity] = SecurityEvent{}
	}
	l.size = kept
	if l.size == 0 {
		l.start = 0
	}
	return removed
}
