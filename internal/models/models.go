// Package models defines the data structures used throughout the tracker service.
package models

import (
	"math"
	"time"
)

// Flight lifecycle state constants
const (
	StateActive = "active"
	StateLanded = "landed"
	StateStale  = "stale"
)

// Reminder marker constants. The empty string means no reminder has been
// sent for the flight yet.
const (
	MarkerNone          = ""
	MarkerLeaveSoonSent = "leave_soon_sent"
	MarkerLeaveNowSent  = "leave_now_sent"
)

// Reminder kind constants
const (
	ReminderLeaveSoon = "leave_soon"
	ReminderLeaveNow  = "leave_now"
)

// Derived flight status constants
const (
	StatusScheduled = "scheduled"
	StatusOnTime    = "on_time"
	StatusEarly     = "early"
	StatusDelayed   = "delayed"
	StatusCanceled  = "canceled"
	StatusDiverted  = "diverted"
	StatusLanded    = "landed"
)

// OnTimeThreshold is how far a flight may drift from its schedule before its
// derived status flips from scheduled/on-time to delayed or early.
const OnTimeThreshold = 10 * time.Minute

// Location is a latitude/longitude pair in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceMiles returns the great-circle distance in statute miles between
// two coordinates, computed with the haversine formula.
func (l Location) DistanceMiles(other Location) float64 {
	const earthRadiusMiles = 3958.8

	lat1 := l.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - l.Latitude) * math.Pi / 180
	dLon := (other.Longitude - l.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

// AirportInfo describes one endpoint of a tracked flight.
type AirportInfo struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Terminal string   `json:"terminal,omitempty"`
	Location Location `json:"location"`
}

// TrackedFlight represents one flight a user is actively following.
// It mirrors the tracked_flights database table.
type TrackedFlight struct {
	ID                 string      `json:"id"`
	UserID             string      `json:"user_id"`
	FlightNumber       string      `json:"flight_number"`
	State              string      `json:"state"`
	Marker             string      `json:"marker"`
	AlertID            string      `json:"alert_id,omitempty"`
	RemindersEnabled   bool        `json:"reminders_enabled"`
	International      bool        `json:"international"`
	Origin             AirportInfo `json:"origin"`
	Destination        AirportInfo `json:"destination"`
	ScheduledDeparture time.Time   `json:"scheduled_departure"`
	ScheduledArrival   time.Time   `json:"scheduled_arrival"`
	EstimatedArrival   time.Time   `json:"estimated_arrival"`
	DepartedAt         *time.Time  `json:"departed_at,omitempty"`
	LandedAt           *time.Time  `json:"landed_at,omitempty"`
	Canceled           bool        `json:"canceled"`
	Diverted           bool        `json:"diverted"`
	UserLocation       *Location   `json:"user_location,omitempty"`
	Version            int64       `json:"version"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// HasDeparted returns true once the flight has an actual departure time.
func (f *TrackedFlight) HasDeparted() bool {
	return f.DepartedAt != nil
}

// HasLanded returns true once the flight has an actual arrival time.
func (f *TrackedFlight) HasLanded() bool {
	return f.LandedAt != nil
}

// IsInFlight returns true while the flight has departed but not yet landed.
func (f *TrackedFlight) IsInFlight() bool {
	return f.DepartedAt != nil && f.LandedAt == nil
}

// HasAlert returns true if the flight holds a provider alert subscription.
func (f *TrackedFlight) HasAlert() bool {
	return f.AlertID != ""
}

// BestArrival returns the most authoritative arrival time known for the
// flight: the actual arrival once landed, otherwise the live estimate,
// otherwise the published schedule.
func (f *TrackedFlight) BestArrival() time.Time {
	if f.LandedAt != nil {
		return *f.LandedAt
	}
	if !f.EstimatedArrival.IsZero() {
		return f.EstimatedArrival
	}
	return f.ScheduledArrival
}

// StatusAt derives the user-facing flight status as of the given instant.
//
// Diversion and cancellation dominate everything else. A flight that has not
// departed is scheduled until it slips more than OnTimeThreshold past its
// scheduled departure, after which it is delayed. A flight in the air is
// classified early, on-time, or delayed by comparing its best arrival
// estimate against the published schedule.
func (f *TrackedFlight) StatusAt(now time.Time) string {
	switch {
	case f.Diverted:
		return StatusDiverted
	case f.Canceled:
		return StatusCanceled
	case f.LandedAt != nil:
		return StatusLanded
	case f.DepartedAt == nil:
		if now.After(f.ScheduledDeparture.Add(OnTimeThreshold)) {
			return StatusDelayed
		}
		return StatusScheduled
	}

	arrival := f.BestArrival()
	switch {
	case arrival.After(f.ScheduledArrival.Add(OnTimeThreshold)):
		return StatusDelayed
	case arrival.Before(f.ScheduledArrival.Add(-OnTimeThreshold)):
		return StatusEarly
	default:
		return StatusOnTime
	}
}

// Status derives the flight status as of now.
func (f *TrackedFlight) Status() string {
	return f.StatusAt(time.Now())
}

// IsOld returns true if the flight is known to have landed more than grace
// ago. Old flights can be retired without consulting the provider.
func (f *TrackedFlight) IsOld(grace time.Duration, now time.Time) bool {
	return f.LandedAt != nil && now.Sub(*f.LandedAt) > grace
}

// IsProbablyOld returns true if the best available arrival estimate is more
// than grace in the past. Such flights are overdue and need their status
// verified against the provider before being retired.
func (f *TrackedFlight) IsProbablyOld(grace time.Duration, now time.Time) bool {
	return now.Sub(f.BestArrival()) > grace
}

// markerRank orders reminder markers so transitions can be checked for
// monotonicity.
func markerRank(marker string) int {
	switch marker {
	case MarkerLeaveSoonSent:
		return 1
	case MarkerLeaveNowSent:
		return 2
	default:
		return 0
	}
}

// MarkerAdvances returns true if moving from one reminder marker to another
// is a forward transition. Markers never regress or repeat, so only a
// strictly higher rank advances.
func MarkerAdvances(from, to string) bool {
	return markerRank(to) > markerRank(from)
}

// MarkerFor returns the marker value recorded after a reminder of the given
// kind has been sent.
func MarkerFor(kind string) string {
	switch kind {
	case ReminderLeaveSoon:
		return MarkerLeaveSoonSent
	case ReminderLeaveNow:
		return MarkerLeaveNowSent
	default:
		return MarkerNone
	}
}
