package store

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/justlanded/tracker/internal/models"
)

// MockStore is a testify/mock implementation of the Store interface.
type MockStore struct {
	mock.Mock
}

// Ensure MockStore satisfies the Store interface at compile time.
var _ Store = (*MockStore)(nil)

// Close mocks the Close method.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Ping mocks the Ping method.
func (m *MockStore) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// InsertFlight mocks the InsertFlight method.
func (m *MockStore) InsertFlight(f *models.TrackedFlight) error {
	args := m.Called(f)
	return args.Error(0)
}

// GetFlight mocks the GetFlight method.
func (m *MockStore) GetFlight(id string) (*models.TrackedFlight, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrackedFlight), args.Error(1)
}

// ListNotStale mocks the ListNotStale method.
func (m *MockStore) ListNotStale() ([]*models.TrackedFlight, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrackedFlight), args.Error(1)
}

// ListReminderCandidates mocks the ListReminderCandidates method.
func (m *MockStore) ListReminderCandidates() ([]*models.TrackedFlight, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrackedFlight), args.Error(1)
}

// ListAlertIDs mocks the ListAlertIDs method.
func (m *MockStore) ListAlertIDs() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MarkLanded mocks the MarkLanded method.
func (m *MockStore) MarkLanded(id string, landedAt time.Time, version int64) error {
	args := m.Called(id, landedAt, version)
	return args.Error(0)
}

// MarkStale mocks the MarkStale method.
func (m *MockStore) MarkStale(id string, version int64) error {
	args := m.Called(id, version)
	return args.Error(0)
}

// UpdateArrival mocks the UpdateArrival method.
func (m *MockStore) UpdateArrival(id string, estimated time.Time, version int64) error {
	args := m.Called(id, estimated, version)
	return args.Error(0)
}

// SetMarker mocks the SetMarker method.
func (m *MockStore) SetMarker(id string, marker string, version int64) error {
	args := m.Called(id, marker, version)
	return args.Error(0)
}

// AcquireFlightLock mocks the AcquireFlightLock method.
func (m *MockStore) AcquireFlightLock(id, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(id, owner, ttl)
	return args.Bool(0), args.Error(1)
}

// ReleaseFlightLock mocks the ReleaseFlightLock method.
func (m *MockStore) ReleaseFlightLock(id, owner string) error {
	args := m.Called(id, owner)
	return args.Error(0)
}

// PurgeStale mocks the PurgeStale method.
func (m *MockStore) PurgeStale(retention time.Duration) (int64, error) {
	args := m.Called(retention)
	return args.Get(0).(int64), args.Error(1)
}

// CountByState mocks the CountByState method.
func (m *MockStore) CountByState() (map[string]int, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

// RunIncrementalVacuum mocks the RunIncrementalVacuum method.
func (m *MockStore) RunIncrementalVacuum() error {
	args := m.Called()
	return args.Error(0)
}

// GetDatabaseSizeBytes mocks the GetDatabaseSizeBytes method.
func (m *MockStore) GetDatabaseSizeBytes() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}
