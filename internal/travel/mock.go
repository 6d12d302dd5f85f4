package travel

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/justlanded/tracker/internal/models"
)

// MockEstimator is a testify/mock implementation of the Estimator interface.
type MockEstimator struct {
	mock.Mock
}

// Ensure MockEstimator satisfies the Estimator interface at compile time.
var _ Estimator = (*MockEstimator)(nil)

// DrivingTime mocks the DrivingTime method.
func (m *MockEstimator) DrivingTime(ctx context.Context, from, to models.Location) (time.Duration, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(time.Duration), args.Error(1)
}
