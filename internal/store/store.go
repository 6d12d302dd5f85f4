// Package store provides the persistence layer for tracked flights, backed
// by SQLite. All mutations of flight state are version-checked so that
// overlapping component runs cannot clobber each other's updates.
package store

import (
	"errors"
	"time"

	"github.com/justlanded/tracker/internal/models"
)

// Sentinel errors returned by conditional store operations.
var (
	// ErrNotFound is returned when the referenced flight does not exist.
	ErrNotFound = errors.New("flight not found")

	// ErrConflict is returned when a version-checked update loses a race
	// with a concurrent mutator. Callers treat it as "someone else is
	// handling this flight right now" and skip the item.
	ErrConflict = errors.New("flight version conflict")
)

// Store defines all persistence operations used by the tracker components.
// It is implemented by SQLiteStore and mocked in tests.
type Store interface {
	// Close closes the underlying database connection.
	Close() error

	// Ping verifies the database connection is alive.
	Ping() error

	// InsertFlight inserts a new tracked flight record.
	InsertFlight(f *models.TrackedFlight) error

	// GetFlight retrieves a flight by its record ID.
	GetFlight(id string) (*models.TrackedFlight, error)

	// ListNotStale returns every flight that has not reached the stale
	// state, ordered by scheduled arrival.
	ListNotStale() ([]*models.TrackedFlight, error)

	// ListReminderCandidates returns active flights that could still need
	// a reminder: reminders enabled, user location known, not canceled or
	// diverted, and the leave-now reminder not yet sent.
	ListReminderCandidates() ([]*models.TrackedFlight, error)

	// ListAlertIDs returns the provider alert IDs referenced by non-stale
	// flights.
	ListAlertIDs() ([]string, error)

	// MarkLanded records the actual arrival time and moves the flight to
	// the landed state. The update is version-checked.
	MarkLanded(id string, landedAt time.Time, version int64) error

	// MarkStale moves the flight to the stale state, clearing its alert
	// subscription reference in the same statement. The update is
	// version-checked.
	MarkStale(id string, version int64) error

	// UpdateArrival stores a fresh arrival estimate. The update is
	// version-checked.
	UpdateArrival(id string, estimated time.Time, version int64) error

	// SetMarker records the last-sent reminder marker. The update is
	// version-checked.
	SetMarker(id string, marker string, version int64) error

	// AcquireFlightLock claims the advisory per-flight lock for owner. It
	// succeeds when the lock is unheld or expired; it returns false when
	// another owner currently holds it.
	AcquireFlightLock(id, owner string, ttl time.Duration) (bool, error)

	// ReleaseFlightLock releases the advisory lock if owner still holds it.
	ReleaseFlightLock(id, owner string) error

	// PurgeStale permanently removes stale flights whose last update is
	// older than the retention period, returning the number removed.
	PurgeStale(retention time.Duration) (int64, error)

	// CountByState returns the number of flights in each lifecycle state.
	CountByState() (map[string]int, error)

	// GetDatabaseSizeBytes returns the current database size in bytes.
	GetDatabaseSizeBytes() (int64, error)

	// RunIncrementalVacuum reclaims unused database pages.
	RunIncrementalVacuum() error
}
