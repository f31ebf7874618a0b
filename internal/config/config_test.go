package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochatech1725/scholarship-scraper2/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/scholarships")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "@every 6h", cfg.ScrapeSchedule)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.SourceTimeout)
	assert.Equal(t, 1000, cfg.DescriptionMaxLen)
	assert.Equal(t, 500, cfg.EligibilityMaxLen)
	assert.Equal(t, "scholarships", cfg.RecordsTable)
	assert.Equal(t, "scrape_jobs", cfg.JobsTable)
	assert.False(t, cfg.MinIO.Enabled())
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := config.Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_MissingRedisURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("REDIS_URL", "")

	_, err := config.Load()
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_CONCURRENCY", "4")
	t.Setenv("SOURCE_TIMEOUT", "90s")
	t.Setenv("AI_RATE_PER_SEC", "0.5")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 90*time.Second, cfg.SourceTimeout)
	assert.InDelta(t, 0.5, cfg.AIRatePerSec, 1e-9)
	assert.True(t, cfg.MinIO.Enabled())
	assert.True(t, cfg.MinIO.UseSSL)
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"RETRY_MAX_ATTEMPTS": "0",
		"SOURCE_TIMEOUT":     "soon",
		"AI_RATE_PER_SEC":    "-1",
		"MINIO_USE_SSL":      "maybe",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, val)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
