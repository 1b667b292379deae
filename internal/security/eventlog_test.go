package security

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventAt(ts time.Time, d EventDetails) SecurityEvent {
	return SecurityEvent{Timestamp: ts, Type: d.Kind(), Details: d}
}

func TestEventLog_RecentNewestFirst(t *testing.T) {
	log := NewEventLog(10)
	base := time.Now()
	for i := 0; i < 3; i++ {
		log.Append(eventAt(base.Add(time.Duration(i)*time.Second), BlockedIPDetails{Path: string(rune('a' + i))}))
	}

	recent := log.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Details.(BlockedIPDetails).Path)
	assert.Equal(t, "b", recent[1].Details.(BlockedIPDetails).Path)
	assert.Len(t, log.Recent(100), 3)
	assert.Empty(t, log.Recent(0))
}

func TestEventLog_EvictsOldestWhenFull(t *testing.T) {
	log := NewEventLog(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		log.Append(eventAt(base.Add(time.Duration(i)*time.Second), APIErrorDetails{Endpoint: string(rune('a' + i))}))
	}

	assert.Equal(t, 3, log.Len())
	snap := log.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "c", snap[0].Details.(APIErrorDetails).Endpoint)
	assert.Equal(t, "e", snap[2].Details.(APIErrorDetails).Endpoint)
	assert.Equal(t, "e", log.Recent(1)[0].Details.(APIErrorDetails).Endpoint)
}

func TestEventLog_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultEventCapacity, NewEventLog(0).Capacity())
}

func TestEventLog_Summary(t *testing.T) {
	log := NewEventLog(10)
	now := time.Now()
	log.Append(eventAt(now.Add(-2*time.Hour), RateLimitDetails{Endpoint: "x"}))
	log.Append(eventAt(now.Add(-time.Minute), RateLimitDetails{Endpoint: "x"}))
	log.Append(eventAt(now.Add(-time.Minute), SuspiciousRequestDetails{Reason: "r"}))
	log.Append(eventAt(now, APIErrorDetails{Endpoint: "y", Error: "boom"}))
	log.Append(eventAt(now, CSRFDetails{Path: "/"}))

	s := log.Summary(now)
	assert.Equal(t, Summary{RateLimitViolations: 2, SuspiciousRequests: 1, APIErrors: 1, LastHour: 4}, s)
	assert.Equal(t, 1, log.CountByType(EventCSRFValidationFailed))
}

func TestEventLog_EmptySummary(t *testing.T) {
	assert.Equal(t, Summary{}, NewEventLog(5).Summary(time.Now()))
}

func TestEventLog_Prune(t *testing.T) {
	log := NewEventLog(4)
	now := time.Now()
	log.Append(eventAt(now.Add(-3*time.Hour), APIErrorDetails{}))
	log.Append(eventAt(now.Add(-2*time.Hour), APIErrorDetails{}))
	log.Append(eventAt(now, APIErrorDetails{}))

	removed := log.Prune(now.Add(-time.Hour))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, log.Len())

	// still appends correctly after pruning
	for i := 0; i < 5; i++ {
		log.Append(eventAt(now, APIErrorDetails{}))
	}
	assert.Equal(t, 4, log.Len())
	assert.Equal(t, 4, log.Prune(now.Add(time.Second)))
	assert.Equal(t, 0, log.Len())
}

func TestEventLog_PruneOutOfOrder(t *testing.T) {
	log := NewEventLog(3)
	now := time.Now()
	// evicted below so the ring's start is not zero
	log.Append(eventAt(now, APIErrorDetails{Error: "filler"}))
	// a fresh event ahead of an older one, as racing appends can produce
	log.Append(eventAt(now, SuspiciousRequestDetails{Reason: "fresh"}))
	log.Append(eventAt(now.Add(-3*time.Hour), APIErrorDetails{Error: "stale"}))
	log.Append(eventAt(now.Add(-time.Minute), RateLimitDetails{Endpoint: "recent"}))

	removed := log.Prune(now.Add(-time.Hour))
	assert.Equal(t, 1, removed)
	require.Equal(t, 2, log.Len())

	snap := log.Snapshot()
	assert.Equal(t, EventSuspiciousRequest, snap[0].Type)
	assert.Equal(t, EventRateLimitExceeded, snap[1].Type)
	assert.Equal(t, 0, log.CountByType(EventAPIError))

	log.Append(eventAt(now, APIErrorDetails{}))
	assert.Equal(t, 3, log.Len())
	assert.Equal(t, EventAPIError, log.Recent(1)[0].Type)
	assert.Equal(t, EventSuspiciousRequest, log.Snapshot()[0].Type)
}

func TestEventLog_SinksObserveAppends(t *testing.T) {
	log := NewEventLog(2)
	var seen []EventType
	log.AddSink(SinkFunc(func(ev SecurityEvent) { seen = append(seen, ev.Type) }))
	log.AddSink(nil)

	log.Append(eventAt(time.Now(), BlockedIPDetails{}))
	log.Append(eventAt(time.Now(), CSRFDetails{}))
	assert.Equal(t, []EventType{EventBlockedIPAccess, EventCSRFValidationFailed}, seen)
}

func TestEventLog_ConcurrentAppends(t *testing.T) {
	log := NewEventLog(500)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(eventAt(time.Now(), APIErrorDetails{}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, log.Len())
}

func TestSecurityEvent_JSONShape(t *testing.T) {
	ev := SecurityEvent{
		ID:        "id-1",
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Type:      EventRateLimitExceeded,
		IP:        "1.2.3.4",
		UserAgent: "curl/8",
		Path:      "/api/security/events",
		Details:   RateLimitDetails{Endpoint: "security-events", Policy: "strict"},
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", out["type"])
	assert.Equal(t, "curl/8", out["userAgent"])
	details := out["details"].(map[string]interface{})
	assert.Equal(t, "security-events", details["endpoint"])
}

func TestEventType_Valid(t *testing.T) {
	for _, et := range EventTypes {
		assert.True(t, et.Valid(), et)
	}
	assert.False(t, EventType("OTHER").Valid())
}
