package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/muster/internal/storage"
)

// MockSubscriptionService is a mock implementation of service.SubscriptionService.
type MockSubscriptionService struct {
	mock.Mock
}

//nolint:revive
func (m *MockSubscriptionService) Register(ctx context.Context, token string) (*storage.Subscription, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Subscription), args.Error(1)
}

//nolint:revive
func (m *MockSubscriptionService) List(ctx context.Context) ([]storage.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Subscription), args.Error(1)
}

//nolint:revive
func (m *MockSubscriptionService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
