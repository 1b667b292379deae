package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/logger"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/util"
)

// DefaultAlertCooldown limits alerts to one per event type per window.
const DefaultAlertCooldown = 5 * time.Minute

// AlertService forwards selected security events to shoutrrr destinations
// (Slack, Discord, email, generic webhooks). It implements security.Sink.
type AlertService struct {
	urls     []string
	types    map[security.EventType]bool
	cooldown time.Duration
	send     func(url, message string) error

	mu       sync.Mutex
	lastSent map[security.EventType]time.Time
	wg       sync.WaitGroup
}

// NewAlertService returns an alert sink for the given destinations. An empty
// types list alerts on blocked IPs and CSRF failures only.
func NewAlertService(urls []string, types []string, cooldown time.Duration) *AlertService {
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	s := &AlertService{
		urls:     urls,
		types:    make(map[security.EventType]bool),
		cooldown: cooldown,
		send:     shoutrrr.Send,
		lastSent: make(map[security.EventType]time.Time),
	}
	if len(types) == 0 {
		s.types[security.EventBlockedIPAccess] = true
		s.types[security.EventCSRFValidationFailed] = true
	}
	for _, t := range types {
		et := security.EventType(strings.ToUpper(strings.TrimSpace(t)))
		if et.Valid() {
			s.types[et] = true
		}
	}
	return s
}

// Enabled reports whether any destination is configured.
func (s *AlertService) Enabled() bool {
	return len(s.urls) > 0
}

// Observe sends an alert for ev if its type is selected and the type's
// cooldown has passed. Delivery happens in the background.
func (s *AlertService) Observe(ev security.SecurityEvent) {
	if !s.Enabled() || !s.types[ev.Type] {
		return
	}

	s.mu.Lock()
	if last, ok := s.lastSent[ev.Type]; ok && ev.Timestamp.Sub(last) < s.cooldown {
		s.mu.Unlock()
		return
	}
	s.lastSent[ev.Type] = ev.Timestamp
	s.mu.Unlock()

	msg := formatAlert(ev)
	for _, url := range s.urls {
		s.wg.Add(1)
		go func(url string) {
			defer s.wg.Done()
			if err := s.send(url, msg); err != nil {
				logger.Log().WithField("type", string(ev.Type)).WithError(err).Warn("failed to deliver security alert")
			}
		}(url)
	}
}

// Wait blocks until in-flight deliveries finish.
func (s *AlertService) Wait() {
	s.wg.Wait()
}

func formatAlert(ev security.SecurityEvent) string {
	title := strings.ReplaceAll(string(ev.Type), "_", " ")
	return fmt.Sprintf("Security alert: %s\n\nip: %s\npath: %s\ntime: %s",
		title,
		util.SanitizeForLog(ev.IP),
		util.SanitizeForLog(ev.Path),
		ev.Timestamp.UTC().Format(time.RFC3339),
	)
}
