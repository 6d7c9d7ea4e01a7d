package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const requestColumns = `id, message, status, sent_count, failed_count, error,
	claim_id, claimed_at, completed_at, failed_at, created_at`

// SQLRequestStore implements RequestStore on top of SQLite or PostgreSQL.
type SQLRequestStore struct {
	db *sqlx.DB
}

// NewSQLRequestStore returns a new SQLRequestStore.
func NewSQLRequestStore(db *sqlx.DB) *SQLRequestStore {
	return &SQLRequestStore{db: db}
}

// CreateRequest inserts a new notification request.
func (s *SQLRequestStore) CreateRequest(ctx context.Context, req *NotificationRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = RequestStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notification_requests
			(id, message, status, sent_count, failed_count, error,
			 claim_id, claimed_at, completed_at, failed_at, created_at)
		VALUES
			(:id, :message, :status, :sent_count, :failed_count, :error,
			 :claim_id, :claimed_at, :completed_at, :failed_at, :created_at)`, req)
	if err != nil {
		return fmt.Errorf("creating notification request: %w", err)
	}
	return nil
}

// GetRequest returns a request by ID, or nil if not found.
func (s *SQLRequestStore) GetRequest(ctx context.Context, id string) (*NotificationRequest, error) {
	var req NotificationRequest
	err := s.db.GetContext(ctx, &req, s.db.Rebind(
		`SELECT `+requestColumns+` FROM notification_requests WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification request %q: %w", id, err)
	}
	return &req, nil
}

// ListRequests returns the most recent requests ordered by created_at descending.
func (s *SQLRequestStore) ListRequests(ctx context.Context, limit int) ([]*NotificationRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	reqs := make([]*NotificationRequest, 0)
	err := s.db.SelectContext(ctx, &reqs, s.db.Rebind(
		`SELECT `+requestColumns+` FROM notification_requests
		 ORDER BY created_at DESC
		 LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing notification requests: %w", err)
	}
	return reqs, nil
}

// ListUnclaimed returns unclaimed pending requests created before the cutoff.
func (s *SQLRequestStore) ListUnclaimed(
	ctx context.Context, createdBefore time.Time, limit int,
) ([]*NotificationRequest, error) {
	reqs := make([]*NotificationRequest, 0)
	err := s.db.SelectContext(ctx, &reqs, s.db.Rebind(
		`SELECT `+requestColumns+` FROM notification_requests
		 WHERE status = ? AND claim_id = '' AND created_at < ?
		 ORDER BY created_at ASC
		 LIMIT ?`), RequestStatusPending, createdBefore.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing unclaimed requests: %w", err)
	}
	return reqs, nil
}

// ListAbandoned returns pending requests claimed before the cutoff.
func (s *SQLRequestStore) ListAbandoned(
	ctx context.Context, claimedBefore time.Time, limit int,
) ([]*NotificationRequest, error) {
	reqs := make([]*NotificationRequest, 0)
	err := s.db.SelectContext(ctx, &reqs, s.db.Rebind(
		`SELECT `+requestColumns+` FROM notification_requests
		 WHERE status = ? AND claim_id <> '' AND claimed_at < ?
		 ORDER BY claimed_at ASC
		 LIMIT ?`), RequestStatusPending, claimedBefore.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing abandoned requests: %w", err)
	}
	return reqs, nil
}

// ClaimRequest takes ownership of a pending, unclaimed request.
func (s *SQLRequestStore) ClaimRequest(ctx context.Context, id, claimID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE notification_requests SET claim_id = ?, claimed_at = ?
		WHERE id = ? AND status = ? AND claim_id = ''`),
		claimID, at.UTC(), id, RequestStatusPending)
	if err != nil {
		return false, fmt.Errorf("claiming request %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected for request %q: %w", id, err)
	}
	return n == 1, nil
}

// CompleteRequest records a successful send cycle.
func (s *SQLRequestStore) CompleteRequest(
	ctx context.Context, id, claimID string, sent, failed int, at time.Time,
) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE notification_requests SET
			status = ?, sent_count = ?, failed_count = ?, completed_at = ?
		WHERE id = ? AND status = ? AND claim_id = ?`),
		RequestStatusCompleted, sent, failed, at.UTC(),
		id, RequestStatusPending, claimID)
	if err != nil {
		return fmt.Errorf("completing request %q: %w", id, err)
	}
	return expectOneRow(res, id)
}

// FailRequest records a pipeline failure.
func (s *SQLRequestStore) FailRequest(ctx context.Context, id, claimID, reason string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE notification_requests SET
			status = ?, error = ?, failed_at = ?
		WHERE id = ? AND status = ? AND (claim_id = '' OR claim_id = ?)`),
		RequestStatusFailed, reason, at.UTC(),
		id, RequestStatusPending, claimID)
	if err != nil {
		return fmt.Errorf("failing request %q: %w", id, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for request %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("request %q: %w", id, ErrRequestNotPending)
	}
	return nil
}
