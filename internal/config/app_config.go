package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/shaharia-lab/muster/internal/dispatch"
)

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8990.
	Port int `envconfig:"PORT" default:"8990"`

	// DataDir is the root data directory. Defaults to ~/.muster.
	DataDir string `envconfig:"MUSTER_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DBDriver selects the SQL backend: sqlite or postgres.
	DBDriver string `envconfig:"MUSTER_DB_DRIVER" default:"sqlite"`
	// DBDSN is the driver-specific connection string. For sqlite it defaults
	// to <DataDir>/muster.db.
	DBDSN string `envconfig:"MUSTER_DB_DSN"`

	// RedisURL enables the cross-process event relay when set.
	RedisURL     string `envconfig:"MUSTER_REDIS_URL"`
	RedisChannel string `envconfig:"MUSTER_REDIS_CHANNEL" default:"muster:events"`

	FCMProjectID       string  `envconfig:"MUSTER_FCM_PROJECT_ID"`
	FCMCredentialsFile string  `envconfig:"MUSTER_FCM_CREDENTIALS_FILE"`
	FCMEndpoint        string  `envconfig:"MUSTER_FCM_ENDPOINT"`
	FCMConcurrency     int     `envconfig:"MUSTER_FCM_CONCURRENCY" default:"10"`
	FCMRate            float64 `envconfig:"MUSTER_FCM_RATE" default:"0"`

	// NotifyTitle is the title of every broadcast notification.
	NotifyTitle string `envconfig:"MUSTER_NOTIFY_TITLE" default:"Squadron Notice"`

	DispatchWorkers int           `envconfig:"MUSTER_DISPATCH_WORKERS" default:"3"`
	DispatchTimeout time.Duration `envconfig:"MUSTER_DISPATCH_TIMEOUT" default:"2m"`
	MaxBatchSize    int           `envconfig:"MUSTER_MAX_BATCH_SIZE" default:"500"`

	SweepInterval time.Duration `envconfig:"MUSTER_SWEEP_INTERVAL" default:"1m"`
	SweepGrace    time.Duration `envconfig:"MUSTER_SWEEP_GRACE" default:"30s"`
	ClaimTTL      time.Duration `envconfig:"MUSTER_CLAIM_TTL" default:"10m"`

	CORSOrigins []string `envconfig:"MUSTER_CORS_ORIGINS"`

	// OTLPEndpoint enables trace export over gRPC when set.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.muster if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".muster")
	}
	if c.DBDSN == "" && c.DBDriver == "sqlite" {
		c.DBDSN = filepath.Join(c.DataDir, "muster.db")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values envconfig cannot.
func (c *AppConfig) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("MUSTER_DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("MUSTER_DB_DSN is required for driver %q", c.DBDriver)
	}
	if c.MaxBatchSize < 1 || c.MaxBatchSize > 500 {
		return fmt.Errorf("MUSTER_MAX_BATCH_SIZE must be between 1 and 500, got %d", c.MaxBatchSize)
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("MUSTER_DISPATCH_TIMEOUT must be positive, got %s", c.DispatchTimeout)
	}
	// The sweeper must never fail a request whose dispatch is still running.
	if held := c.DispatchTimeout + dispatch.FinalizeTimeout; c.ClaimTTL <= held {
		return fmt.Errorf("MUSTER_CLAIM_TTL must exceed MUSTER_DISPATCH_TIMEOUT plus %s (%s), got %s",
			dispatch.FinalizeTimeout, held, c.ClaimTTL)
	}
	return nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.muster/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}
