// Package config loads application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the fetch and enrichment pipeline.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	// Completion API
	LLMAPIKey    string `env:"LLM_API_KEY"`
	LLMBaseURL   string `env:"LLM_BASE_URL" envDefault:"https://api.deepseek.com/v1"`
	LLMModel     string `env:"LLM_MODEL" envDefault:"deepseek-chat"`
	LLMMaxTokens int    `env:"LLM_MAX_TOKENS" envDefault:"2000"`
	RateLimitRPS int    `env:"RATE_LIMIT_RPS" envDefault:"1"`

	// Feed fetching
	FetchInterval  time.Duration `env:"FETCH_INTERVAL" envDefault:"15m"`
	SourceFetchGap time.Duration `env:"SOURCE_FETCH_GAP" envDefault:"2m"`
	FeedTimeout    time.Duration `env:"FEED_TIMEOUT" envDefault:"30s"`
	FeedItemLimit  int           `env:"FEED_ITEM_LIMIT" envDefault:"50"`

	// Feed validation cache
	FeedCacheTTL     time.Duration `env:"FEED_CACHE_TTL" envDefault:"180s"`
	FeedCacheMaxSize int           `env:"FEED_CACHE_MAX_SIZE" envDefault:"999"`

	// AI labeling
	LabelBatchSize     int           `env:"LABEL_BATCH_SIZE" envDefault:"3"`
	LabelRetryInterval time.Duration `env:"LABEL_RETRY_INTERVAL" envDefault:"15m"`

	// AI summarization
	SummaryBatchSize      int           `env:"SUMMARY_BATCH_SIZE" envDefault:"3"`
	SummaryTimeout        time.Duration `env:"SUMMARY_TIMEOUT" envDefault:"30s"`
	SummaryMaxConcurrency int           `env:"SUMMARY_MAX_CONCURRENCY" envDefault:"4"`
	SummaryRetryInterval  time.Duration `env:"SUMMARY_RETRY_INTERVAL" envDefault:"15m"`
	SummaryMinBodyLength  int           `env:"SUMMARY_MIN_BODY_LENGTH" envDefault:"100"`

	// Retry schedulers
	RetryBatchSize int           `env:"RETRY_BATCH_SIZE" envDefault:"3"`
	RetryBatchGap  time.Duration `env:"RETRY_BATCH_GAP" envDefault:"10s"`

	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
