package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// deleteChunk caps the number of bind parameters in one DELETE statement.
const deleteChunk = 500

// SQLSubscriptionStore implements SubscriptionStore on top of SQLite or PostgreSQL.
type SQLSubscriptionStore struct {
	db *sqlx.DB
}

// NewSQLSubscriptionStore returns a new SQLSubscriptionStore.
func NewSQLSubscriptionStore(db *sqlx.DB) *SQLSubscriptionStore {
	return &SQLSubscriptionStore{db: db}
}

// CreateSubscription inserts a device registration.
func (s *SQLSubscriptionStore) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO subscriptions (id, token, created_at)
		VALUES (:id, :token, :created_at)`, sub)
	if err != nil {
		return fmt.Errorf("creating subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns all registrations ordered by creation time.
func (s *SQLSubscriptionStore) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	subs := make([]Subscription, 0)
	err := s.db.SelectContext(ctx, &subs,
		`SELECT id, token, created_at FROM subscriptions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

// DeleteSubscription removes a single registration.
func (s *SQLSubscriptionStore) DeleteSubscription(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM subscriptions WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting subscription %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for subscription %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %q: %w", id, ErrSubscriptionNotFound)
	}
	return nil
}

// DeleteSubscriptions removes the given registrations atomically.
func (s *SQLSubscriptionStore) DeleteSubscriptions(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin subscription delete: %w", err)
	}

	var total int64
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))

		query, args, err := sqlx.In("DELETE FROM subscriptions WHERE id IN (?)", ids[start:end])
		if err != nil {
			rollback(tx, "subscription delete")
			return 0, fmt.Errorf("building subscription delete: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			rollback(tx, "subscription delete")
			return 0, fmt.Errorf("deleting subscriptions: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			rollback(tx, "subscription delete")
			return 0, fmt.Errorf("checking rows affected for subscription delete: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit subscription delete: %w", err)
	}
	return total, nil
}
