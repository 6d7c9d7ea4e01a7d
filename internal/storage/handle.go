package storage

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Handle owns the process-wide database connection. The connection is opened
// on the first call to DB and the same *sqlx.DB is returned for the lifetime
// of the process; an open failure is sticky.
type Handle struct {
	driver string
	dsn    string

	once  sync.Once
	db    *sqlx.DB
	fresh bool
	err   error
}

// NewHandle returns a Handle that will open driver/dsn on first use.
func NewHandle(driver, dsn string) *Handle {
	return &Handle{driver: driver, dsn: dsn}
}

// DB returns the shared connection, opening and migrating it on first use.
func (h *Handle) DB(ctx context.Context) (*sqlx.DB, error) {
	h.once.Do(func() {
		h.db, h.fresh, h.err = Open(ctx, h.driver, h.dsn)
	})
	return h.db, h.err
}

// Fresh reports whether opening the handle created a new database.
func (h *Handle) Fresh() bool {
	return h.fresh
}

// Close closes the connection if it was opened. A handle closed before first
// use refuses to open afterwards.
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.err = ErrHandleClosed
	})
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}
