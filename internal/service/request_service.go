package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaharia-lab/muster/internal/eventbus"
	"github.com/shaharia-lab/muster/internal/storage"
)

// MaxMessageBytes caps the broadcast text. FCM rejects payloads above 4 KB and
// the message travels in both the notification body and the data map.
const MaxMessageBytes = 1800

const defaultListLimit = 50

// RequestService defines the business logic interface for broadcast requests.
type RequestService interface {
	CreateRequest(ctx context.Context, message string) (*storage.NotificationRequest, error)
	GetRequest(ctx context.Context, id string) (*storage.NotificationRequest, error)
	ListRequests(ctx context.Context, limit int) ([]*storage.NotificationRequest, error)
}

type requestService struct {
	repo      storage.RequestStore
	publisher EventPublisher
	logger    *slog.Logger
}

// NewRequestService returns a new RequestService. Every created request is
// announced on publisher as eventbus.EventRequestCreated.
func NewRequestService(repo storage.RequestStore, publisher EventPublisher, logger *slog.Logger) RequestService {
	return &requestService{repo: repo, publisher: publisher, logger: logger}
}

func (s *requestService) CreateRequest(ctx context.Context, message string) (*storage.NotificationRequest, error) {
	if strings.TrimSpace(message) == "" {
		return nil, &ValidationError{Field: "message", Message: "message is required"}
	}
	if len(message) > MaxMessageBytes {
		return nil, &ValidationError{
			Field:   "message",
			Message: fmt.Sprintf("message must be at most %d bytes", MaxMessageBytes),
		}
	}

	req := &storage.NotificationRequest{
		ID:        uuid.New().String(),
		Message:   message,
		Status:    storage.RequestStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(eventbus.EventRequestCreated,
			eventbus.RequestCreatedPayload(req.ID, string(req.Status), req.Message))
	}

	s.logger.Info("notification request created", "request_id", req.ID, "bytes", len(message))
	return req, nil
}

func (s *requestService) GetRequest(ctx context.Context, id string) (*storage.NotificationRequest, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting request %q: %w", id, err)
	}
	if req == nil {
		return nil, &NotFoundError{Resource: "notification request", ID: id}
	}
	return req, nil
}

func (s *requestService) ListRequests(ctx context.Context, limit int) ([]*storage.NotificationRequest, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	reqs, err := s.repo.ListRequests(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return reqs, nil
}
