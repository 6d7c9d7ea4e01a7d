package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/muster/internal/storage"
)

func TestOpen_ReopenAppliesNothing(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "nested", "muster.db")

	db, fresh, err := storage.Open(ctx, storage.DriverSQLite, dsn)
	require.NoError(t, err)
	assert.True(t, fresh)
	require.NoError(t, db.Close())

	db, fresh, err = storage.Open(ctx, storage.DriverSQLite, dsn)
	require.NoError(t, err)
	defer db.Close()
	assert.False(t, fresh)

	var n int
	require.NoError(t, db.GetContext(ctx, &n, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 1, n)
}
