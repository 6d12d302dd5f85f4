package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestStatusAt(t *testing.T) {
	now := time.Date(2014, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		flight   TrackedFlight
		expected string
	}{
		{
			name: "scheduled before departure",
			flight: TrackedFlight{
				ScheduledDeparture: now.Add(2 * time.Hour),
				ScheduledArrival:   now.Add(8 * time.Hour),
			},
			expected: StatusScheduled,
		},
		{
			name: "scheduled within on-time threshold of departure",
			flight: TrackedFlight{
				ScheduledDeparture: now.Add(-5 * time.Minute),
				ScheduledArrival:   now.Add(6 * time.Hour),
			},
			expected: StatusScheduled,
		},
		{
			name: "delayed when departure slipped past threshold",
			flight: TrackedFlight{
				ScheduledDeparture: now.Add(-30 * time.Minute),
				ScheduledArrival:   now.Add(6 * time.Hour),
			},
			expected: StatusDelayed,
		},
		{
			name: "on time in the air",
			flight: TrackedFlight{
				ScheduledDeparture: now.Add(-1 * time.Hour),
				ScheduledArrival:   now.Add(2 * time.Hour),
				EstimatedArrival:   now.Add(2*time.Hour + 5*time.Minute),
				DepartedAt:         timePtr(now.Add(-1 * time.Hour)),
			},
			expected: StatusOnTime,
		},
		{
			name: "early in the air",
			flight: TrackedFlight{
				ScheduledDeparture: now.Add(-1 * time.Hour),
				ScheduledArrival:   now.Add(2 * time.Hour),
				EstimatedArrival:   now.Add(2*time.Hour - 25*time.Minute),
				DepartedAt:         timePtr(now.Add(-1 * time.Hour)),
			},
			expected: StatusEarly,
		},
		{
			name: "delayed in the air",
			flight: TrackedFlight{
				ScheduledDeparture: now.Add(-1 * time.Hour),
				ScheduledArrival:   now.Add(2 * time.Hour),
				EstimatedArrival:   now.Add(2*time.Hour + 45*time.Minute),
				DepartedAt:         timePtr(now.Add(-1 * time.Hour)),
			},
			expected: StatusDelayed,
		},
		{
			name: "landed",
			flight: TrackedFlight{
				ScheduledDeparture: now.Add(-6 * time.Hour),
				ScheduledArrival:   now.Add(-1 * time.Hour),
				DepartedAt:         timePtr(now.Add(-6 * time.Hour)),
				LandedAt:           timePtr(now.Add(-50 * time.Minute)),
			},
			expected: StatusLanded,
		},
		{
			name: "canceled wins over schedule",
			flight: TrackedFlight{
				ScheduledDeparture: now.Add(2 * time.Hour),
				ScheduledArrival:   now.Add(8 * time.Hour),
				Canceled:           true,
			},
			expected: StatusCanceled,
		},
		{
			name: "diverted wins over landed",
			flight: TrackedFlight{
				ScheduledDeparture: now.Add(-6 * time.Hour),
				LandedAt:           timePtr(now.Add(-1 * time.Hour)),
				Diverted:           true,
			},
			expected: StatusDiverted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.flight.StatusAt(now))
		})
	}
}

func TestBestArrival(t *testing.T) {
	scheduled := time.Date(2014, 6, 10, 18, 0, 0, 0, time.UTC)
	estimated := scheduled.Add(20 * time.Minute)
	actual := scheduled.Add(12 * time.Minute)

	tests := []struct {
		name     string
		flight   TrackedFlight
		expected time.Time
	}{
		{
			name:     "falls back to schedule",
			flight:   TrackedFlight{ScheduledArrival: scheduled},
			expected: scheduled,
		},
		{
			name: "prefers estimate over schedule",
			flight: TrackedFlight{
				ScheduledArrival: scheduled,
				EstimatedArrival: estimated,
			},
			expected: estimated,
		},
		{
			name: "prefers actual arrival over estimate",
			flight: TrackedFlight{
				ScheduledArrival: scheduled,
				EstimatedArrival: estimated,
				LandedAt:         &actual,
			},
			expected: actual,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.flight.BestArrival())
		})
	}
}

func TestIsOld(t *testing.T) {
	now := time.Now()
	grace := 2 * time.Hour

	tests := []struct {
		name     string
		flight   TrackedFlight
		expected bool
	}{
		{
			name:     "not old while airborne",
			flight:   TrackedFlight{DepartedAt: timePtr(now.Add(-1 * time.Hour))},
			expected: false,
		},
		{
			name:     "not old when landed within grace",
			flight:   TrackedFlight{LandedAt: timePtr(now.Add(-30 * time.Minute))},
			expected: false,
		},
		{
			name:     "old when landed past grace",
			flight:   TrackedFlight{LandedAt: timePtr(now.Add(-2*time.Hour - time.Minute))},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.flight.IsOld(grace, now))
		})
	}
}

func TestIsProbablyOld(t *testing.T) {
	now := time.Now()
	grace := 2 * time.Hour

	tests := []struct {
		name     string
		flight   TrackedFlight
		expected bool
	}{
		{
			name: "not overdue when estimate is in the future",
			flight: TrackedFlight{
				ScheduledArrival: now.Add(-3 * time.Hour),
				EstimatedArrival: now.Add(30 * time.Minute),
			},
			expected: false,
		},
		{
			name: "not overdue when estimate is recently past",
			flight: TrackedFlight{
				EstimatedArrival: now.Add(-30 * time.Minute),
			},
			expected: false,
		},
		{
			name: "overdue when estimate is beyond grace",
			flight: TrackedFlight{
				EstimatedArrival: now.Add(-3 * time.Hour),
			},
			expected: true,
		},
		{
			name: "overdue on schedule alone when no estimate exists",
			flight: TrackedFlight{
				ScheduledArrival: now.Add(-3 * time.Hour),
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.flight.IsProbablyOld(grace, now))
		})
	}
}

func TestMarkerAdvances(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		expected bool
	}{
		{"none to leave soon", MarkerNone, MarkerLeaveSoonSent, true},
		{"none to leave now", MarkerNone, MarkerLeaveNowSent, true},
		{"leave soon to leave now", MarkerLeaveSoonSent, MarkerLeaveNowSent, true},
		{"leave soon does not repeat", MarkerLeaveSoonSent, MarkerLeaveSoonSent, false},
		{"leave now does not repeat", MarkerLeaveNowSent, MarkerLeaveNowSent, false},
		{"leave now never regresses", MarkerLeaveNowSent, MarkerLeaveSoonSent, false},
		{"no transition back to none", MarkerLeaveSoonSent, MarkerNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MarkerAdvances(tt.from, tt.to))
		})
	}
}

func TestMarkerFor(t *testing.T) {
	assert.Equal(t, MarkerLeaveSoonSent, MarkerFor(ReminderLeaveSoon))
	assert.Equal(t, MarkerLeaveNowSent, MarkerFor(ReminderLeaveNow))
	assert.Equal(t, MarkerNone, MarkerFor("unknown"))
}

func TestDistanceMiles(t *testing.T) {
	sfo := Location{Latitude: 37.6188, Longitude: -122.3756}
	lax := Location{Latitude: 33.9425, Longitude: -118.4081}

	// SFO to LAX is roughly 337 statute miles.
	d := sfo.DistanceMiles(lax)
	assert.InDelta(t, 337.0, d, 5.0)

	// Distance is symmetric and zero to itself.
	assert.InDelta(t, d, lax.DistanceMiles(sfo), 0.001)
	assert.InDelta(t, 0.0, sfo.DistanceMiles(sfo), 0.001)
}

func TestFlightHelpers(t *testing.T) {
	now := time.Now()

	f := TrackedFlight{}
	assert.False(t, f.HasDeparted())
	assert.False(t, f.HasLanded())
	assert.False(t, f.IsInFlight())
	assert.False(t, f.HasAlert())

	f.DepartedAt = timePtr(now.Add(-1 * time.Hour))
	f.AlertID = "alert-1"
	assert.True(t, f.HasDeparted())
	assert.True(t, f.IsInFlight())
	assert.True(t, f.HasAlert())

	f.LandedAt = timePtr(now)
	assert.True(t, f.HasLanded())
	assert.False(t, f.IsInFlight())
}
