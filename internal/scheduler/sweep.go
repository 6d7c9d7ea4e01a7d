package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/shaharia-lab/muster/internal/eventbus"
	"github.com/shaharia-lab/muster/internal/storage"
)

// sweep runs one pass: abandoned claims are failed first, then unclaimed
// pending requests get their created event again.
func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := s.now()
	s.failAbandoned(ctx, now)
	s.republishUnclaimed(ctx, now)
}

// failAbandoned fails requests claimed longer than ClaimTTL ago. They are
// never re-sent: the owning invocation may already have delivered.
func (s *Scheduler) failAbandoned(ctx context.Context, now time.Time) {
	reqs, err := s.cfg.RequestStore.ListAbandoned(ctx, now.Add(-s.cfg.ClaimTTL), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("sweeper: listing abandoned requests", "error", err)
		return
	}

	for _, r := range reqs {
		err := s.cfg.RequestStore.FailRequest(ctx, r.ID, r.ClaimID, AbandonedReason, now)
		switch {
		case errors.Is(err, storage.ErrRequestNotPending):
			// finalized between list and update
			continue
		case err != nil:
			s.logger.Error("sweeper: failing abandoned request", "request_id", r.ID, "error", err)
			continue
		}
		s.abandoned.Inc()
		s.logger.Warn("sweeper: failed abandoned request",
			"request_id", r.ID, "claimed_at", r.ClaimedAt)
	}
}

// republishUnclaimed re-publishes created events for pending requests that
// nobody claimed within Grace. Duplicate triggers are harmless because the
// claim is conditional.
func (s *Scheduler) republishUnclaimed(ctx context.Context, now time.Time) {
	reqs, err := s.cfg.RequestStore.ListUnclaimed(ctx, now.Add(-s.cfg.Grace), s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("sweeper: listing unclaimed requests", "error", err)
		return
	}

	for _, r := range reqs {
		s.cfg.EventPublisher.Publish(eventbus.EventRequestCreated,
			eventbus.RequestCreatedPayload(r.ID, string(r.Status), r.Message))
		s.republished.Inc()
		s.logger.Info("sweeper: re-published unclaimed request",
			"request_id", r.ID, "created_at", r.CreatedAt)
	}
}
