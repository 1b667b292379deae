package security

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/logger"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/util"
)

// Options configures a State.
type Options struct {
	TrustProxy     bool
	TrustedOrigins []string
	BlockedIPs     []string
	Policies       []Policy
	EventCapacity  int
	InspectionMode string
	Clock          func() time.Time
}

// State bundles the process-wide security primitives. It is built once at
// startup and handed to the middleware and handlers that need it.
type State struct {
	IPs            IPResolver
	Events         *EventLog
	Limiters       *LimiterSet
	Blocklist      *BlockList
	CSRF           *CSRFValidator
	InspectionMode string

	now func() time.Time
}

// DefaultPolicies returns the built-in policy table keyed by client IP.
func DefaultPolicies(res IPResolver) []Policy {
	return []Policy{
		{Name: PolicyStrict, Window: time.Minute, MaxRequests: 10, Key: KeyByIP(res)},
		{Name: PolicyAuth, Window: 15 * time.Minute, MaxRequests: 5, Key: KeyByIP(res)},
		{Name: PolicyDefault, Window: time.Minute, MaxRequests: 100, Key: KeyByIP(res)},
	}
}

// NewState validates opts and builds the security primitives.
func NewState(opts Options) (*State, error) {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	res := IPResolver{TrustProxy: opts.TrustProxy}

	policies := opts.Policies
	if len(policies) == 0 {
		policies = DefaultPolicies(res)
	}
	limiters, err := NewLimiterSet(policies, WithClock(now))
	if err != nil {
		return nil, err
	}

	blocklist, err := NewBlockList(opts.BlockedIPs)
	if err != nil {
		return nil, err
	}

	return &State{
		IPs:            res,
		Events:         NewEventLog(opts.EventCapacity),
		Limiters:       limiters,
		Blocklist:      blocklist,
		CSRF:           NewCSRFValidator(opts.TrustedOrigins),
		InspectionMode: NormalizeInspectionMode(opts.InspectionMode),
		now:            now,
	}, nil
}

// Now returns the state's clock reading.
func (s *State) Now() time.Time { return s.now() }

// Limiter returns the limiter for a policy name.
func (s *State) Limiter(name string) (*Limiter, bool) {
	return s.Limiters.Get(name)
}

// NewEvent builds an event for r without recording it.
func (s *State) NewEvent(r *http.Request, details EventDetails) SecurityEvent {
	ev := SecurityEvent{
		ID:        uuid.New().String(),
		Timestamp: s.now(),
		Type:      details.Kind(),
		Details:   details,
	}
	if r != nil {
		ev.IP = s.IPs.Resolve(r)
		ev.UserAgent = r.UserAgent()
		if r.URL != nil {
			ev.Path = r.URL.Path
		}
	}
	return ev
}

// Record appends an event for r to the log and writes a warning line.
func (s *State) Record(r *http.Request, details EventDetails) SecurityEvent {
	ev := s.NewEvent(r, details)
	s.Events.Append(ev)
	logger.Log().WithFields(logrus.Fields{
		"source":   "security",
		"event_id": ev.ID,
		"type":     string(ev.Type),
		"ip":       util.SanitizeForLog(ev.IP),
		"path":     util.SanitizeForLog(ev.Path),
	}).Warn("security event recorded")
	return ev
}
