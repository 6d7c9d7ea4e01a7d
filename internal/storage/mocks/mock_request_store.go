package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/muster/internal/storage"
)

// MockRequestStore is a mock implementation of storage.RequestStore.
type MockRequestStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockRequestStore) CreateRequest(ctx context.Context, req *storage.NotificationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

//nolint:revive
func (m *MockRequestStore) GetRequest(ctx context.Context, id string) (*storage.NotificationRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.NotificationRequest), args.Error(1)
}

//nolint:revive
func (m *MockRequestStore) ListRequests(ctx context.Context, limit int) ([]*storage.NotificationRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.NotificationRequest), args.Error(1)
}

//nolint:revive
func (m *MockRequestStore) ListUnclaimed(
	ctx context.Context, createdBefore time.Time, limit int,
) ([]*storage.NotificationRequest, error) {
	args := m.Called(ctx, createdBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.NotificationRequest), args.Error(1)
}

//nolint:revive
func (m *MockRequestStore) ListAbandoned(
	ctx context.Context, claimedBefore time.Time, limit int,
) ([]*storage.NotificationRequest, error) {
	args := m.Called(ctx, claimedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.NotificationRequest), args.Error(1)
}

//nolint:revive
func (m *MockRequestStore) ClaimRequest(ctx context.Context, id, claimID string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, claimID, at)
	return args.Bool(0), args.Error(1)
}

//nolint:revive
func (m *MockRequestStore) CompleteRequest(
	ctx context.Context, id, claimID string, sent, failed int, at time.Time,
) error {
	args := m.Called(ctx, id, claimID, sent, failed, at)
	return args.Error(0)
}

//nolint:revive
func (m *MockRequestStore) FailRequest(ctx context.Context, id, claimID, reason string, at time.Time) error {
	args := m.Called(ctx, id, claimID, reason, at)
	return args.Error(0)
}
