package cerberus

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/logger"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/metrics"
	"github.com/vimalkumar7838/sabpaisa-developer-portal/internal/security"
)

const (
	// DefaultSweepSchedule runs the janitor once a minute.
	DefaultSweepSchedule = "@every 1m"
	// DefaultEventMaxAge is how long events stay in the log.
	DefaultEventMaxAge = 24 * time.Hour
)

// Janitor periodically drops expired rate limit buckets and aged events.
type Janitor struct {
	state  *security.State
	maxAge time.Duration
	cron   *cron.Cron
}

// NewJanitor schedules the cleanup job. A non-positive maxAge keeps events
// until the ring buffer evicts them.
func NewJanitor(state *security.State, schedule string, maxAge time.Duration) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	j := &Janitor{state: state, maxAge: maxAge, cron: cron.New()}
	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce() }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins running the schedule in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running job to finish.
func (j *Janitor) Stop() { <-j.cron.Stop().Done() }

// RunOnce performs one cleanup pass and returns the removed bucket and event counts.
func (j *Janitor) RunOnce() (buckets, events int) {
	now := j.state.Now()
	buckets = j.state.Limiters.Sweep(now)
	metrics.AddSweptBuckets(buckets)
	if j.maxAge > 0 {
		events = j.state.Events.Prune(now.Add(-j.maxAge))
	}
	if buckets > 0 || events > 0 {
		logger.Log().WithFields(logrus.Fields{
			"source":  "janitor",
			"buckets": buckets,
			"events":  events,
		}).Debug("expired security state removed")
	}
	return buckets, events
}
