package storage

import (
	"context"
	"errors"
	"time"
)

// RequestStatus is the lifecycle state of a NotificationRequest.
type RequestStatus string

// Request status constants. Completed and failed are terminal.
const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusFailed    RequestStatus = "failed"
)

// IsTerminal reports whether s can never change again.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusFailed
}

// IsValid reports whether s is a known status.
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusPending, RequestStatusCompleted, RequestStatusFailed:
		return true
	}
	return false
}

var (
	// ErrRequestNotPending is returned by conditional updates when the request
	// no longer matches the expected pending/claim state.
	ErrRequestNotPending = errors.New("notification request is not pending")

	// ErrHandleClosed is returned by Handle.DB after Close.
	ErrHandleClosed = errors.New("database handle closed")
)

// NotificationRequest is one broadcast intent: deliver Message to every
// registered device.
type NotificationRequest struct {
	ID          string        `json:"id" db:"id"`
	Message     string        `json:"message" db:"message"`
	Status      RequestStatus `json:"status" db:"status"`
	SentCount   int           `json:"sent_count" db:"sent_count"`
	FailedCount int           `json:"failed_count" db:"failed_count"`
	Error       string        `json:"error,omitempty" db:"error"`
	ClaimID     string        `json:"-" db:"claim_id"`
	ClaimedAt   *time.Time    `json:"-" db:"claimed_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt    *time.Time    `json:"failed_at,omitempty" db:"failed_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// RequestStore persists notification requests. Every mutation after creation
// is conditional on the stored status still being pending.
type RequestStore interface {
	// CreateRequest inserts a new request. ID and CreatedAt are filled in when empty.
	CreateRequest(ctx context.Context, req *NotificationRequest) error
	// GetRequest returns the request with the given id, or nil if it does not exist.
	GetRequest(ctx context.Context, id string) (*NotificationRequest, error)
	// ListRequests returns the most recent requests, newest first.
	ListRequests(ctx context.Context, limit int) ([]*NotificationRequest, error)
	// ListUnclaimed returns pending requests nobody has claimed that were
	// created before the cutoff, oldest first.
	ListUnclaimed(ctx context.Context, createdBefore time.Time, limit int) ([]*NotificationRequest, error)
	// ListAbandoned returns pending requests whose claim is older than the cutoff.
	ListAbandoned(ctx context.Context, claimedBefore time.Time, limit int) ([]*NotificationRequest, error)

	// ClaimRequest marks a pending, unclaimed request as owned by claimID.
	// Returns false when the request is missing, terminal or already claimed.
	ClaimRequest(ctx context.Context, id, claimID string, at time.Time) (bool, error)
	// CompleteRequest moves a request claimed by claimID to completed.
	CompleteRequest(ctx context.Context, id, claimID string, sent, failed int, at time.Time) error
	// FailRequest moves a pending request that is unclaimed or claimed by
	// claimID to failed.
	FailRequest(ctx context.Context, id, claimID, reason string, at time.Time) error
}
