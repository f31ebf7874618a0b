// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the discovery service.
type Config struct {
	Environment string
	Port        string
	LogLevel    string

	DatabaseURL string
	RedisURL    string

	// ScrapeSchedule is a robfig/cron spec, e.g. "@every 6h".
	ScrapeSchedule string
	RunLockTTL     time.Duration
	MaxConcurrency int // 0 means one goroutine per source
	SourceTimeout  time.Duration

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	AnthropicAPIKey string
	AnthropicModel  string
	AIRatePerSec    float64

	SearchAPIURL string
	SearchAPIKey string

	MinIO MinIOConfig

	RecordsTable string
	JobsTable    string

	DescriptionMaxLen int
	EligibilityMaxLen int
}

// MinIOConfig configures the raw-content archive. Empty Endpoint disables it.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether archiving is configured.
func (m MinIOConfig) Enabled() bool { return m.Endpoint != "" }

// Load reads an optional .env file, then environment variables, and returns a
// validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg := &Config{
		Environment:     getenv("APP_ENV", "development"),
		Port:            getenv("DISCOVERY_PORT", "8081"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		DatabaseURL:     dbURL,
		RedisURL:        redisURL,
		ScrapeSchedule:  getenv("SCRAPE_SCHEDULE", "@every 6h"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  getenv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		SearchAPIURL:    os.Getenv("SEARCH_API_URL"),
		SearchAPIKey:    os.Getenv("SEARCH_API_KEY"),
		RecordsTable:    getenv("RECORDS_TABLE", "scholarships"),
		JobsTable:       getenv("JOBS_TABLE", "scrape_jobs"),
		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getenv("MINIO_BUCKET", "scholarship-raw"),
		},
	}

	var err error
	if cfg.MaxConcurrency, err = intEnv("MAX_CONCURRENCY", 0, 0); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = intEnv("RETRY_MAX_ATTEMPTS", 3, 1); err != nil {
		return nil, err
	}
	if cfg.DescriptionMaxLen, err = intEnv("DESCRIPTION_MAX_LEN", 1000, 10); err != nil {
		return nil, err
	}
	if cfg.EligibilityMaxLen, err = intEnv("ELIGIBILITY_MAX_LEN", 500, 10); err != nil {
		return nil, err
	}
	if cfg.SourceTimeout, err = durationEnv("SOURCE_TIMEOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = durationEnv("RETRY_BASE_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.RunLockTTL, err = durationEnv("RUN_LOCK_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AIRatePerSec, err = floatEnv("AI_RATE_PER_SEC", 1); err != nil {
		return nil, err
	}
	if s := os.Getenv("MINIO_USE_SSL"); s != "" {
		v, perr := strconv.ParseBool(s)
		if perr != nil {
			return nil, fmt.Errorf("MINIO_USE_SSL must be a boolean, got %q", s)
		}
		cfg.MinIO.UseSSL = v
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < minimum {
		return 0, fmt.Errorf("%s must be an integer >= %d, got %q", key, minimum, s)
	}
	return v, nil
}

func floatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number, got %q", key, s)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, s)
	}
	return v, nil
}
