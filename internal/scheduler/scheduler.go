// Package scheduler runs the periodic pending-request sweep on gocron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaharia-lab/muster/internal/storage"
)

// EventPublisher allows the scheduler to emit events without depending on a
// concrete event bus implementation.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// AbandonedReason is recorded on requests whose claim outlived the claim TTL.
const AbandonedReason = "dispatch abandoned"

const (
	defaultInterval  = time.Minute
	defaultGrace     = 30 * time.Second
	defaultClaimTTL  = 10 * time.Minute
	defaultSweepSize = 100
)

// Config holds the scheduler configuration.
type Config struct {
	RequestStore   storage.RequestStore
	EventPublisher EventPublisher
	Logger         *slog.Logger
	// Registerer receives the sweep counters. Nil leaves them unregistered.
	Registerer prometheus.Registerer

	// Interval between sweeps.
	Interval time.Duration
	// Grace is how long an unclaimed pending request may wait for its
	// created event before it is re-published.
	Grace time.Duration
	// ClaimTTL is how long a claimed request may stay pending before it is
	// failed as abandoned.
	ClaimTTL time.Duration
	// BatchSize limits the rows handled per query per sweep.
	BatchSize int
}

// Scheduler manages the sweep job using gocron.
type Scheduler struct {
	cron   gocron.Scheduler
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	republished prometheus.Counter
	abandoned   prometheus.Counter
}

// New creates a new Scheduler.
func New(cfg Config) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}

	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Grace <= 0 {
		cfg.Grace = defaultGrace
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = defaultClaimTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepSize
	}

	f := promauto.With(cfg.Registerer)
	return &Scheduler{
		cron:   cron,
		cfg:    cfg,
		logger: cfg.Logger,
		now:    func() time.Time { return time.Now().UTC() },
		republished: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muster",
			Subsystem: "sweeper",
			Name:      "republished_total",
			Help:      "Unclaimed pending requests re-published by the sweeper",
		}),
		abandoned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "muster",
			Subsystem: "sweeper",
			Name:      "abandoned_total",
			Help:      "Claimed requests failed by the sweeper after the claim TTL",
		}),
	}, nil
}

// Start schedules the sweep job and starts the gocron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() { s.sweep(ctx) }),
		gocron.WithName("sweep-pending-requests"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling sweep job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("pending sweeper started",
		"interval", s.cfg.Interval, "grace", s.cfg.Grace, "claim_ttl", s.cfg.ClaimTTL)
	return nil
}

// Stop shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}
