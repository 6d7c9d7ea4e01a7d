package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/muster/internal/storage"
)

// MockRequestService is a mock implementation of service.RequestService.
type MockRequestService struct {
	mock.Mock
}

//nolint:revive
func (m *MockRequestService) CreateRequest(ctx context.Context, message string) (*storage.NotificationRequest, error) {
	args := m.Called(ctx, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.NotificationRequest), args.Error(1)
}

//nolint:revive
func (m *MockRequestService) GetRequest(ctx context.Context, id string) (*storage.NotificationRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.NotificationRequest), args.Error(1)
}

//nolint:revive
func (m *MockRequestService) ListRequests(ctx context.Context, limit int) ([]*storage.NotificationRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.NotificationRequest), args.Error(1)
}
