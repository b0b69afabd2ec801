package mocks

import (
	"context"

	"github.com/saransh1220/novel-notify/internal/modules/notification/domain"
	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of domain.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockDeliverer is a mock implementation of domain.Deliverer
type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(n domain.Notification) bool {
	args := m.Called(n)
	return args.Bool(0)
}
