package dedup_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochatech1725/scholarship-scraper2/internal/db"
	"github.com/mochatech1725/scholarship-scraper2/internal/dedup"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("SCHOLARSYNC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SCHOLARSYNC_TEST_DATABASE_URL not set")
	}
	require.NoError(t, db.MigrateUp(url, logger.NewNop()))
	pool, err := db.NewPostgresPool(context.Background(), url, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = pool.Exec(context.Background(), `TRUNCATE scholarships`)
	require.NoError(t, err)
	return pool
}

func TestPostgresStore_InsertExistsTouch(t *testing.T) {
	pool := setupTestDB(t)
	store := dedup.NewPostgresStore(pool, "scholarships")
	ctx := context.Background()
	rec := record("Integration Award")

	exists, err := store.Exists(ctx, rec.ID, rec.Deadline)
	require.NoError(t, err)
	assert.False(t, exists)

	inserted, err := store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Insert(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted, "second insert is a no-op")

	found, err := store.Touch(ctx, rec.ID, rec.Deadline, time.Now())
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.Touch(ctx, "missing", rec.Deadline, time.Now())
	require.NoError(t, err)
	assert.False(t, found)
}
