// Package outage detects flight data provider outages from the recent
// failure history and gates the scheduling components while one is in
// effect. Thresholds and the recovery policy come from configuration.
package outage

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justlanded/tracker/pkg/flightaware"
)

// Tracker keeps a rolling window of recent provider failures and the current
// outage state. The provider client reports failures as they happen; the
// Monitor makes the policy decisions.
type Tracker struct {
	mu          sync.RWMutex
	failures    []time.Time
	maxFailures int
	degraded    bool
	outageSince time.Time
	logger      *zap.Logger
}

var _ flightaware.FailureRecorder = (*Tracker)(nil)

// NewTracker creates a Tracker that retains the most recent maxFailures
// failure timestamps.
func NewTracker(maxFailures int, logger *zap.Logger) *Tracker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &Tracker{
		maxFailures: maxFailures,
		logger:      logger,
	}
}

// RecordFailure appends a failure timestamp to the rolling window, dropping
// the oldest entry once the window is full.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = append(t.failures, time.Now())
	if len(t.failures) > t.maxFailures {
		t.failures = t.failures[len(t.failures)-t.maxFailures:]
	}
	t.logger.Debug("provider failure recorded", zap.Int("window_count", len(t.failures)))
}

// Count returns the number of failures currently in the window.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.failures)
}

// Rate returns the failure rate in failures per minute, measured from the
// oldest failure in the window to now. A burst shorter than one second is
// rated as if it took one second.
func (t *Tracker) Rate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.failures) == 0 {
		return 0
	}
	minutes := time.Since(t.failures[0]).Minutes()
	if minutes < 1.0/60.0 {
		minutes = 1.0 / 60.0
	}
	return float64(len(t.failures)) / minutes
}

// LastFailure returns the timestamp of the most recent failure, or the zero
// time if none has been recorded.
func (t *Tracker) LastFailure() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.failures) == 0 {
		return time.Time{}
	}
	return t.failures[len(t.failures)-1]
}

// Healthy reports whether the provider is currently considered available.
func (t *Tracker) Healthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.degraded
}

// OutageSince returns the time the current outage was declared, or the zero
// time while the provider is healthy.
func (t *Tracker) OutageSince() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.outageSince
}

// MarkOutage flips the tracker into the outage state. It returns false if an
// outage was already in effect.
func (t *Tracker) MarkOutage() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.degraded {
		return false
	}
	t.degraded = true
	t.outageSince = time.Now()
	return true
}

// MarkHealthy ends the outage and clears the failure window. It returns the
// duration of the outage that just ended, or zero if the provider was
// already healthy.
func (t *Tracker) MarkHealthy() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.degraded {
		return 0
	}
	elapsed := time.Since(t.outageSince)
	t.degraded = false
	t.outageSince = time.Time{}
	t.failures = nil
	return elapsed
}
