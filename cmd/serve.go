package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/muster/internal/api"
	"github.com/shaharia-lab/muster/internal/build"
	"github.com/shaharia-lab/muster/internal/config"
	"github.com/shaharia-lab/muster/internal/eventbus"
	"github.com/shaharia-lab/muster/internal/scheduler"
	"github.com/shaharia-lab/muster/internal/server"
	"github.com/shaharia-lab/muster/internal/service"
)

// NewServeCmd returns the serve subcommand.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the broadcast API and dispatch pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			logFile := filepath.Join(cfg.LogDir(), "system.log")
			printBanner(build.Version, fmt.Sprintf("http://localhost:%d", cfg.Port), logFile)

			if err := runServe(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "An error occurred. Please check the logs at: %s\n", logFile)
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")

	return cmd
}

func runServe(cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	sysLogger := a.logger
	sysLogger.Info("muster starting",
		slog.Int("port", cfg.Port),
		slog.String("db_driver", cfg.DBDriver),
		slog.String("version", build.Version),
		slog.Bool("redis_relay", cfg.RedisURL != ""),
	)

	dropped := promauto.With(a.registry).NewCounter(prometheus.CounterOpts{
		Name: "muster_eventbus_dropped_total",
		Help: "Events dropped because the bus was closed or its buffer was full.",
	})

	var bus eventbus.EventBus = eventbus.New(cfg.DispatchWorkers,
		eventbus.WithLogger(sysLogger),
		eventbus.WithDroppedCounter(dropped),
	)
	if cfg.RedisURL != "" {
		relay, relayErr := eventbus.NewRedisRelay(ctx, cfg.RedisURL, cfg.RedisChannel, bus, sysLogger)
		if relayErr != nil {
			bus.Close()
			sysLogger.Error("redis relay unavailable", "error", relayErr)
			return fmt.Errorf("starting redis relay: %w", relayErr)
		}
		bus = relay
	}
	// Closing the bus drains in-flight dispatches before storage shuts down.
	defer bus.Close()

	bus.Subscribe(a.engine.HandleEvent)

	sched, err := scheduler.New(scheduler.Config{
		RequestStore:   a.requests,
		EventPublisher: bus,
		Logger:         sysLogger,
		Registerer:     a.registry,
		Interval:       cfg.SweepInterval,
		Grace:          cfg.SweepGrace,
		ClaimTTL:       cfg.ClaimTTL,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer func() {
		if stopErr := sched.Stop(); stopErr != nil {
			sysLogger.Warn("scheduler stop failed", "error", stopErr)
		}
	}()

	requestSvc := service.NewRequestService(a.requests, bus, sysLogger)
	subscriptionSvc := service.NewSubscriptionService(a.subs, sysLogger)
	apiSrv := api.New(requestSvc, subscriptionSvc, sysLogger)

	srv := server.New(apiSrv, server.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.CORSOrigins,
		Gatherer:       a.registry,
		Health: func(ctx context.Context) error {
			db, err := a.handle.DB(ctx)
			if err != nil {
				return err
			}
			return db.PingContext(ctx)
		},
	}, sysLogger)

	if err := srv.Run(ctx); err != nil {
		sysLogger.Error("server error", "error", err)
		return err
	}
	sysLogger.Info("muster stopped")
	return nil
}

var (
	bannerTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	bannerLabel = lipgloss.NewStyle().Faint(true)
)

// printBanner writes the startup banner to stdout. Structured logs go to the
// log file instead.
func printBanner(version, serverURL, logFile string) {
	fmt.Println()
	fmt.Println(bannerTitle.Render("Muster " + version))
	fmt.Printf("%s %s\n", bannerLabel.Render("API: "), serverURL)
	fmt.Printf("%s %s\n\n", bannerLabel.Render("Logs:"), logFile)
}
