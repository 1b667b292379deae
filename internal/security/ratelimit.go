package security

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Built-in policy names.
const (
	PolicyStrict  = "strict"
	PolicyAuth    = "auth"
	PolicyDefault = "default"
)

// KeyFunc derives the bucket key for a request.
type KeyFunc func(r *http.Request) string

// KeyByIP buckets requests by client IP.
func KeyByIP(res IPResolver) KeyFunc {
	return func(r *http.Request) string {
		ip := res.Resolve(r)
		if ip == "" {
			return "unknown"
		}
		return ip
	}
}

// KeyByIPAndRoute buckets requests by client IP and request path.
func KeyByIPAndRoute(res IPResolver) KeyFunc {
	byIP := KeyByIP(res)
	return func(r *http.Request) string {
		return byIP(r) + "|" + r.URL.Path
	}
}

// Policy is a named fixed-window limit.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
	Key         KeyFunc
}

// Validate rejects policies that could never admit a request.
func (p Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("rate limit policy: name required")
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit policy %q: window must be positive", p.Name)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("rate limit policy %q: max requests must be positive", p.Name)
	}
	return nil
}

// Decision is the outcome of a single rate-limit check.
type Decision struct {
	Policy     string
	Allowed    bool
	Limit      int
	Count      int
	Remaining  int
	Window     time.Duration
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (d Decision) RetryAfterSeconds() int {
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type bucket struct {
	count       int
	windowStart time.Time
}

// Limiter counts requests per key in fixed windows for a single policy.
type Limiter struct {
	policy  Policy
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

// LimiterOption customizes a Limiter.
type LimiterOption func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter creates a limiter for p. A nil key function buckets everything
// under the direct connection address.
func NewLimiter(p Policy, opts ...LimiterOption) *Limiter {
	if p.Key == nil {
		p.Key = KeyByIP(IPResolver{})
	}
	l := &Limiter{
		policy:  p,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy { return l.policy }

// Check applies the policy to r.
func (l *Limiter) Check(r *http.Request) Decision {
	return l.Allow(l.policy.Key(r))
}

// Allow records one request for key and reports whether it fits the window.
// The lookup, reset and increment happen under one lock so concurrent
// requests for the same key are never lost.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(l.policy.Window)) {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}
	b.count++
	count := b.count
	resetAt := b.windowStart.Add(l.policy.Window)
	l.mu.Unlock()

	d := Decision{
		Policy:  l.policy.Name,
		Limit:   l.policy.MaxRequests,
		Count:   count,
		Window:  l.policy.Window,
		ResetAt: resetAt,
	}
	if count > l.policy.MaxRequests {
		d.RetryAfter = resetAt.Sub(now)
		return d
	}
	d.Allowed = true
	d.Remaining = l.policy.MaxRequests - count
	return d
}

// Count returns the number of requests recorded for key in its current window.
func (l *Limiter) Count(key string) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(l.policy.Window)) {
		return 0
	}
	return b.count
}

// Len returns the number of live buckets, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Sweep removes buckets whose window ended before now and returns how many
// were removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if !now.Before(b.windowStart.Add(l.policy.Window)) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// LimiterSet holds one independent limiter per named policy.
type LimiterSet struct {
	limiters map[string]*Limiter
}

// NewLimiterSet validates policies and creates a limiter for each.
func NewLimiterSet(policies []Policy, opts ...LimiterOption) (*LimiterSet, error) {
	set := &LimiterSet{limiters: make(map[string]*Limiter, len(policies))}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set.limiters[p.Name]; dup {
			return nil, fmt.Errorf("rate limit policy %q defined twice", p.Name)
		}
		set.limiters[p.Name] = NewLimiter(p, opts...)
	}
	return set, nil
}

// Get returns the limiter for name.
func (s *LimiterSet) Get(name string) (*Limiter, bool) {
	if s == nil {
		return nil, false
	}
	l, ok := s.limiters[name]
	return l, ok
}

// Names lists policy names in sorted order.
func (s *LimiterSet) Names() []string {
	names := make([]string, 0, len(s.limiters))
	for name := range s.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sweep sweeps every limiter and returns the total number of removed buckets.
func (s *LimiterSet) Sweep(now time.Time) int {
	if s == nil {
		return 0
	}
	total := 0
	for _, l := range s.limiters {
		total += l.Sweep(now)
	}
	return total
}
