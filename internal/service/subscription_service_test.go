package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/muster/internal/storage"
	"github.com/shaharia-lab/muster/internal/storage/mocks"
)

func newTestSubscriptionService(repo *mocks.MockSubscriptionStore) SubscriptionService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSubscriptionService(repo, logger)
}

func TestRegister(t *testing.T) {
	repo := new(mocks.MockSubscriptionStore)
	repo.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(s *storage.Subscription) bool {
		return s.ID != "" && s.Token == "fcm-token-1" && !s.CreatedAt.IsZero()
	})).Return(nil)

	svc := newTestSubscriptionService(repo)
	sub, err := svc.Register(context.Background(), "  fcm-token-1 ")

	require.NoError(t, err)
	assert.Equal(t, "fcm-token-1", sub.Token)
	repo.AssertExpectations(t)
}

func TestRegister_Validation(t *testing.T) {
	for name, token := range map[string]string{
		"empty":    "",
		"blank":    "   ",
		"too long": strings.Repeat("t", MaxTokenBytes+1),
	} {
		t.Run(name, func(t *testing.T) {
			repo := new(mocks.MockSubscriptionStore)
			svc := newTestSubscriptionService(repo)

			_, err := svc.Register(context.Background(), token)

			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, "token", valErr.Field)
			repo.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_StoreError(t *testing.T) {
	repo := new(mocks.MockSubscriptionStore)
	repo.On("CreateSubscription", mock.Anything, mock.Anything).Return(errors.New("db error"))

	svc := newTestSubscriptionService(repo)
	_, err := svc.Register(context.Background(), "tok")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating subscription")
}

func TestListSubscriptions(t *testing.T) {
	repo := new(mocks.MockSubscriptionStore)
	repo.On("ListSubscriptions", mock.Anything).
		Return([]storage.Subscription{{ID: "1", Token: "a"}, {ID: "2", Token: "b"}}, nil)

	svc := newTestSubscriptionService(repo)
	subs, err := svc.List(context.Background())

	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestDeleteSubscription(t *testing.T) {
	repo := new(mocks.MockSubscriptionStore)
	repo.On("DeleteSubscription", mock.Anything, "s1").Return(nil)

	svc := newTestSubscriptionService(repo)
	require.NoError(t, svc.Delete(context.Background(), "s1"))
	repo.AssertExpectations(t)
}

func TestDeleteSubscription_NotFound(t *testing.T) {
	repo := new(mocks.MockSubscriptionStore)
	repo.On("DeleteSubscription", mock.Anything, "gone").
		Return(fmt.Errorf("subscription %q: %w", "gone", storage.ErrSubscriptionNotFound))

	svc := newTestSubscriptionService(repo)
	err := svc.Delete(context.Background(), "gone")

	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "subscription", nfErr.Resource)
}

func TestDeleteSubscription_Error(t *testing.T) {
	repo := new(mocks.MockSubscriptionStore)
	repo.On("DeleteSubscription", mock.Anything, "s1").Return(errors.New("locked"))

	svc := newTestSubscriptionService(repo)
	err := svc.Delete(context.Background(), "s1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleting subscription")
}
