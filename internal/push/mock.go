package push

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSender is a testify/mock implementation of the Sender interface.
type MockSender struct {
	mock.Mock
}

// Ensure MockSender satisfies the Sender interface at compile time.
var _ Sender = (*MockSender)(nil)

// Send mocks the Send method.
func (m *MockSender) Send(ctx context.Context, n *Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
