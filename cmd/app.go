package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/api/option"

	"github.com/shaharia-lab/muster/internal/build"
	"github.com/shaharia-lab/muster/internal/config"
	"github.com/shaharia-lab/muster/internal/dispatch"
	"github.com/shaharia-lab/muster/internal/logger"
	"github.com/shaharia-lab/muster/internal/push"
	"github.com/shaharia-lab/muster/internal/storage"
	"github.com/shaharia-lab/muster/internal/telemetry"
)

// app holds the dependencies shared by the serve and dispatch commands.
type app struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	registry *prometheus.Registry
	handle   *storage.Handle
	requests *storage.SQLRequestStore
	subs     *storage.SQLSubscriptionStore
	engine   *dispatch.Engine

	closers []func(context.Context) error
}

// newApp wires logging, tracing, storage, the FCM gateway and the dispatch
// engine. echo, when non-nil, receives a copy of every log record.
func newApp(ctx context.Context, cfg *config.AppConfig, echo io.Writer) (*app, error) {
	sysLogger, logFile, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel(), echo)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   sysLogger,
		registry: prometheus.NewRegistry(),
	}
	a.onClose(func(context.Context) error { return logFile.Close() })

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		ServiceName:    "muster",
		ServiceVersion: build.Version,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	a.onClose(shutdownTracing)

	a.handle = storage.NewHandle(cfg.DBDriver, cfg.DBDSN)
	a.onClose(func(context.Context) error { return a.handle.Close() })

	db, err := a.handle.DB(ctx)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("opening %s database: %w", cfg.DBDriver, err)
	}
	if a.handle.Fresh() {
		sysLogger.Info("initialized new database", "driver", cfg.DBDriver)
	}
	a.requests = storage.NewSQLRequestStore(db)
	a.subs = storage.NewSQLSubscriptionStore(db)

	gateway, err := newGateway(ctx, cfg)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	a.engine = dispatch.New(a.requests, a.subs, gateway, dispatch.Config{
		Title:        cfg.NotifyTitle,
		MaxBatchSize: cfg.MaxBatchSize,
		Timeout:      cfg.DispatchTimeout,
	}, sysLogger, dispatch.NewMetrics(a.registry))

	return a, nil
}

func newGateway(ctx context.Context, cfg *config.AppConfig) (*push.FCMGateway, error) {
	var opts []option.ClientOption
	if cfg.FCMEndpoint != "" && cfg.FCMCredentialsFile == "" {
		// Emulators accept unauthenticated requests.
		opts = append(opts, option.WithoutAuthentication())
	} else {
		creds, err := push.LoadCredentials(ctx, cfg.FCMCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("loading fcm credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(creds.TokenSource))
		if cfg.FCMProjectID == "" {
			cfg.FCMProjectID = creds.ProjectID
		}
	}

	gw, err := push.NewFCMGateway(ctx, push.FCMConfig{
		ProjectID:     cfg.FCMProjectID,
		Endpoint:      cfg.FCMEndpoint,
		Concurrency:   cfg.FCMConcurrency,
		RatePerSecond: cfg.FCMRate,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating fcm gateway: %w", err)
	}
	return gw, nil
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown completed with errors", "error", err)
	}
}
