package storage

import (
	"context"
	"errors"
	"time"
)

// ErrSubscriptionNotFound is returned when deleting a subscription that does not exist.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Subscription is one device registration holding a single delivery token.
// Tokens are not unique; duplicates are delivered to independently.
type Subscription struct {
	ID        string    `json:"id" db:"id"`
	Token     string    `json:"token" db:"token"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SubscriptionStore persists device registrations.
type SubscriptionStore interface {
	// CreateSubscription inserts a registration. ID and CreatedAt are filled in when empty.
	CreateSubscription(ctx context.Context, sub *Subscription) error
	// ListSubscriptions returns every registration.
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	// DeleteSubscription removes one registration.
	DeleteSubscription(ctx context.Context, id string) error
	// DeleteSubscriptions removes the given registrations in a single
	// transaction: either all matching rows are deleted or none are.
	// IDs that no longer exist are ignored. Returns the number of rows deleted.
	DeleteSubscriptions(ctx context.Context, ids []string) (int64, error)
}
