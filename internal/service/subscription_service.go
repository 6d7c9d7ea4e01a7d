package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaharia-lab/muster/internal/storage"
)

// MaxTokenBytes bounds a registration token.
const MaxTokenBytes = 4096

// SubscriptionService defines the business logic interface for device
// subscriptions.
type SubscriptionService interface {
	Register(ctx context.Context, token string) (*storage.Subscription, error)
	List(ctx context.Context) ([]storage.Subscription, error)
	Delete(ctx context.Context, id string) error
}

type subscriptionService struct {
	repo   storage.SubscriptionStore
	logger *slog.Logger
}

// NewSubscriptionService returns a new SubscriptionService backed by repo.
func NewSubscriptionService(repo storage.SubscriptionStore, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{repo: repo, logger: logger}
}

func (s *subscriptionService) Register(ctx context.Context, token string) (*storage.Subscription, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &ValidationError{Field: "token", Message: "token is required"}
	}
	if len(token) > MaxTokenBytes {
		return nil, &ValidationError{
			Field:   "token",
			Message: fmt.Sprintf("token must be at most %d bytes", MaxTokenBytes),
		}
	}

	sub := &storage.Subscription{
		ID:        uuid.New().String(),
		Token:     token,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("creating subscription: %w", err)
	}

	s.logger.Info("subscription registered", "subscription_id", sub.ID)
	return sub, nil
}

func (s *subscriptionService) List(ctx context.Context) ([]storage.Subscription, error) {
	subs, err := s.repo.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

func (s *subscriptionService) Delete(ctx context.Context, id string) error {
	err := s.repo.DeleteSubscription(ctx, id)
	if errors.Is(err, storage.ErrSubscriptionNotFound) {
		return &NotFoundError{Resource: "subscription", ID: id}
	}
	if err != nil {
		return fmt.Errorf("deleting subscription %q: %w", id, err)
	}
	s.logger.Info("subscription deleted", "subscription_id", id)
	return nil
}
