package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver.
	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// migration represents a single schema migration step.
type migration struct {
	version int
	sql     string
}

// migrations holds all schema migrations in order. Each migration is applied
// exactly once, tracked by the schema_migrations table. The DDL sticks to types
// both SQLite and PostgreSQL understand.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE notification_requests (
    id           TEXT PRIMARY KEY,
    message      TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'pending',
    sent_count   INTEGER NOT NULL DEFAULT 0,
    failed_count INTEGER NOT NULL DEFAULT 0,
    error        TEXT NOT NULL DEFAULT '',
    claim_id     TEXT NOT NULL DEFAULT '',
    claimed_at   TIMESTAMP NULL,
    completed_at TIMESTAMP NULL,
    failed_at    TIMESTAMP NULL,
    created_at   TIMESTAMP NOT NULL
);
CREATE INDEX idx_notification_requests_status ON notification_requests(status, created_at);

CREATE TABLE subscriptions (
    id         TEXT PRIMARY KEY,
    token      TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX idx_subscriptions_token ON subscriptions(token);
`,
	},
}

// Open connects to the database identified by driver and dsn, configures the
// connection for the driver and runs any pending schema migrations. Returns
// true as the second value if the database was newly created.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, bool, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(ctx, dsn)
	case DriverPostgres:
		return openPostgres(ctx, dsn)
	default:
		return nil, false, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(ctx context.Context, dsn string) (*sqlx.DB, bool, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0750); err != nil {
			return nil, false, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, false, fmt.Errorf("opening database: %w", err)
	}

	// SQLite is single-writer; serialize all access through one connection
	// to avoid SQLITE_BUSY errors from concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, pragmaErr := db.ExecContext(ctx, p); pragmaErr != nil {
			closeQuietly(db, "pragma error")
			return nil, false, fmt.Errorf("setting pragma %q: %w", p, pragmaErr)
		}
	}

	return migrate(ctx, db)
}

func openPostgres(ctx context.Context, dsn string) (*sqlx.DB, bool, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, false, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db, "ping error")
		return nil, false, fmt.Errorf("connecting to database: %w", err)
	}
	return migrate(ctx, db)
}

func migrate(ctx context.Context, db *sqlx.DB) (*sqlx.DB, bool, error) {
	freshDB, err := runMigrations(ctx, db)
	if err != nil {
		closeQuietly(db, "migration error")
		return nil, false, fmt.Errorf("running migrations: %w", err)
	}
	return db, freshDB, nil
}

func closeQuietly(db *sqlx.DB, reason string) {
	if cerr := db.Close(); cerr != nil {
		log.Printf("failed to close database after %s: %v", reason, cerr)
	}
}

// runMigrations ensures the schema_migrations table exists and applies any
// pending migrations. Returns true if migration version 1 was applied during
// this call (indicating a fresh database).
func runMigrations(ctx context.Context, db *sqlx.DB) (bool, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return false, fmt.Errorf("creating schema_migrations table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return false, err
	}

	freshDB := false
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if m.version == 1 {
			freshDB = true
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return false, err
		}
	}

	return freshDB, nil
}

// applyMigration runs a single schema migration inside a transaction.
func applyMigration(ctx context.Context, db *sqlx.DB, m migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.version, err)
	}

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		rollback(tx, "migration")
		return fmt.Errorf("migration %d: %w", m.version, err)
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
		m.version, time.Now().UTC(),
	); err != nil {
		rollback(tx, "migration")
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}

func rollback(tx *sqlx.Tx, what string) {
	if rbErr := tx.Rollback(); rbErr != nil {
		log.Printf("failed to rollback %s: %v", what, rbErr)
	}
}

func currentVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("querying current schema version: %w", err)
	}
	return v, nil
}
