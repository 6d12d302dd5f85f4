// Package stats provides thread-safe delivery statistics tracking for the
// test-endpoint.
package stats

import (
	"sync"
	"time"
)

// Stats tracks push deliveries and provider calls in a thread-safe manner.
type Stats struct {
	mu                 sync.RWMutex
	totalPushes        int64
	pushesByType       map[string]int64
	pushesByDevice     map[string]int64
	duplicatesDetected int64
	providerCalls      map[string]int64
	lastPushTimestamp  time.Time
}

// New returns a new Stats instance ready for use.
func New() *Stats {
	return &Stats{
		pushesByType:   make(map[string]int64),
		pushesByDevice: make(map[string]int64),
		providerCalls:  make(map[string]int64),
	}
}

// RecordPush records one reminder delivered to one device token.
func (s *Stats) RecordPush(notificationType, deviceToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalPushes++
	s.pushesByType[notificationType]++
	s.pushesByDevice[deviceToken]++
	s.lastPushTimestamp = time.Now()
}

// RecordDuplicate increments the redelivery counter.
func (s *Stats) RecordDuplicate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.duplicatesDetected++
}

// RecordProviderCall increments the call counter for a flight-status
// endpoint.
func (s *Stats) RecordProviderCall(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.providerCalls[endpoint]++
}

// StatsResponse is the JSON-serialisable snapshot of current statistics.
type StatsResponse struct {
	TotalPushes        int64            `json:"total_pushes"`
	PushesByType       map[string]int64 `json:"pushes_by_type"`
	PushesByDevice     map[string]int64 `json:"pushes_by_device"`
	DuplicatesDetected int64            `json:"duplicates_detected"`
	ProviderCalls      map[string]int64 `json:"provider_calls"`
	LastPushTimestamp  string           `json:"last_push_timestamp"`
}

// Snapshot returns a point-in-time copy of the current statistics.
func (s *Stats) Snapshot() StatsResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := make(map[string]int64, len(s.pushesByType))
	for k, v := range s.pushesByType {
		byType[k] = v
	}

	byDevice := make(map[string]int64, len(s.pushesByDevice))
	for k, v := range s.pushesByDevice {
		byDevice[k] = v
	}

	calls := make(map[string]int64, len(s.providerCalls))
	for k, v := range s.providerCalls {
		calls[k] = v
	}

	var ts string
	if !s.lastPushTimestamp.IsZero() {
		ts = s.lastPushTimestamp.Format(time.RFC3339)
	}

	return StatsResponse{
		TotalPushes:        s.totalPushes,
		PushesByType:       byType,
		PushesByDevice:     byDevice,
		DuplicatesDetected: s.duplicatesDetected,
		ProviderCalls:      calls,
		LastPushTimestamp:  ts,
	}
}
