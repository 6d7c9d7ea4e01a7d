package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/muster/internal/storage"
)

// MockSubscriptionStore is a mock implementation of storage.SubscriptionStore.
type MockSubscriptionStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockSubscriptionStore) CreateSubscription(ctx context.Context, sub *storage.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

//nolint:revive
func (m *MockSubscriptionStore) ListSubscriptions(ctx context.Context) ([]storage.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Subscription), args.Error(1)
}

//nolint:revive
func (m *MockSubscriptionStore) DeleteSubscription(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

//nolint:revive
func (m *MockSubscriptionStore) DeleteSubscriptions(ctx context.Context, ids []string) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}
