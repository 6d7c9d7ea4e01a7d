package scheduler

import (
	"context"
	"time"
)

// ExportedSweep exposes the private sweep method for external tests.
func (s *Scheduler) ExportedSweep(ctx context.Context) {
	s.sweep(ctx)
}

// SetNow overrides the scheduler clock for external tests.
func (s *Scheduler) SetNow(now func() time.Time) {
	s.now = now
}
