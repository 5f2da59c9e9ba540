// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults mirroring the production BAM feed behavior.
const (
	defaultPageSize       = 12
	defaultHeadPages      = 2
	defaultTailPages      = 3
	defaultMaxRetries     = 3
	defaultBackoff        = 2 * time.Second
	defaultTimeout        = 15 * time.Second
	defaultConcurrency    = 3
	defaultDatabasePath   = "./data/sniper.db"
	defaultPlanFile       = "./data/bam_delta_plan.json"
	defaultRegularAPIURL  = "https://bam-els-sync-api-prd.bam.co.th/api/asset-detail/search"
	defaultAuctionAPIURL  = "https://bam-els-sync-api-prd.bam.co.th/api/asset-detail-auction/search"
	defaultTargetLanguage = "en"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath string
	PlanFile     string

	RegularAPIURL string
	AuctionAPIURL string

	PageSize         int
	HeadRefreshPages int
	TailRecheckPages int

	MaxRetries       int
	RetryBackoff     time.Duration
	RequestTimeout   time.Duration
	FetchConcurrency int

	SkipTranslation bool
	TargetLanguage  string
	LogLevel        string
}

// Load reads configuration from a .env file (if present) and the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:    getEnv("DATABASE_PATH", defaultDatabasePath),
		PlanFile:        getEnv("BAM_PAGE_PLAN_FILE", defaultPlanFile),
		RegularAPIURL:   getEnv("BAM_REGULAR_API_URL", defaultRegularAPIURL),
		AuctionAPIURL:   getEnv("BAM_AUCTION_API_URL", defaultAuctionAPIURL),
		SkipTranslation: os.Getenv("SKIP_TRANSLATION") == "1",
		TargetLanguage:  getEnv("BAM_TARGET_LANGUAGE", defaultTargetLanguage),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.PageSize, err = getEnvInt("BAM_PAGE_SIZE", defaultPageSize); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("BAM_PAGE_SIZE must be positive, got %d", cfg.PageSize)
	}
	if cfg.HeadRefreshPages, err = getEnvInt("BAM_HEAD_REFRESH_PAGES", defaultHeadPages); err != nil {
		return nil, err
	}
	if cfg.TailRecheckPages, err = getEnvInt("BAM_TAIL_RECHECK_PAGES", defaultTailPages); err != nil {
		return nil, err
	}
	if cfg.HeadRefreshPages < 0 {
		cfg.HeadRefreshPages = 0
	}
	if cfg.TailRecheckPages < 0 {
		cfg.TailRecheckPages = 0
	}
	if cfg.MaxRetries, err = getEnvInt("BAM_MAX_RETRIES", defaultMaxRetries); err != nil {
		return nil, err
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.FetchConcurrency, err = getEnvInt("BAM_FETCH_CONCURRENCY", defaultConcurrency); err != nil {
		return nil, err
	}
	if cfg.FetchConcurrency < 1 {
		cfg.FetchConcurrency = 1
	}
	if cfg.RetryBackoff, err = getEnvDuration("BAM_RETRY_BACKOFF", defaultBackoff); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getEnvDuration("BAM_REQUEST_TIMEOUT", defaultTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
