package flightaware

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a testify/mock implementation of the Client interface.
type MockClient struct {
	mock.Mock
}

// Ensure MockClient satisfies the Client interface at compile time.
var _ Client = (*MockClient)(nil)

// LookupStatus mocks the LookupStatus method.
func (m *MockClient) LookupStatus(ctx context.Context, flightID, flightNumber string) (*FlightInfo, error) {
	args := m.Called(ctx, flightID, flightNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FlightInfo), args.Error(1)
}

// RegisterAlert mocks the RegisterAlert method.
func (m *MockClient) RegisterAlert(ctx context.Context, flightID, flightNumber string) (string, error) {
	args := m.Called(ctx, flightID, flightNumber)
	return args.String(0), args.Error(1)
}

// CancelAlert mocks the CancelAlert method.
func (m *MockClient) CancelAlert(ctx context.Context, alertID string) error {
	args := m.Called(ctx, alertID)
	return args.Error(0)
}

// ListAlerts mocks the ListAlerts method.
func (m *MockClient) ListAlerts(ctx context.Context) ([]Alert, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Alert), args.Error(1)
}

// CancelAlerts mocks the CancelAlerts method.
func (m *MockClient) CancelAlerts(ctx context.Context, alertIDs []string) (int, int, error) {
	args := m.Called(ctx, alertIDs)
	return args.Int(0), args.Int(1), args.Error(2)
}
