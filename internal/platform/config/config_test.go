package config

import (
	"os"
	"testing"
	"time"
)

const testEnvPostgresDSN = "POSTGRES_DSN"

const testPostgresDSN = "postgres://localhost/test"

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv(testEnvPostgresDSN)

	_, err := Load()
	if err == nil {
		t.Error("expected error for missing required env vars")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(testEnvPostgresDSN, testPostgresDSN)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AppEnv != "local" {
		t.Errorf("AppEnv = %q, want local", cfg.AppEnv)
	}

	if cfg.FetchInterval != 15*time.Minute {
		t.Errorf("FetchInterval = %v, want 15m", cfg.FetchInterval)
	}

	if cfg.SourceFetchGap != 2*time.Minute {
		t.Errorf("SourceFetchGap = %v, want 2m", cfg.SourceFetchGap)
	}

	if cfg.FeedCacheTTL != 180*time.Second {
		t.Errorf("FeedCacheTTL = %v, want 180s", cfg.FeedCacheTTL)
	}

	if cfg.FeedCacheMaxSize != 999 {
		t.Errorf("FeedCacheMaxSize = %d, want 999", cfg.FeedCacheMaxSize)
	}

	if cfg.LabelBatchSize != 3 {
		t.Errorf("LabelBatchSize = %d, want 3", cfg.LabelBatchSize)
	}

	if cfg.SummaryMaxConcurrency != 4 {
		t.Errorf("SummaryMaxConcurrency = %d, want 4", cfg.SummaryMaxConcurrency)
	}

	if cfg.SummaryTimeout != 30*time.Second {
		t.Errorf("SummaryTimeout = %v, want 30s", cfg.SummaryTimeout)
	}

	if cfg.RetryBatchGap != 10*time.Second {
		t.Errorf("RetryBatchGap = %v, want 10s", cfg.RetryBatchGap)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(testEnvPostgresDSN, testPostgresDSN)
	t.Setenv("FETCH_INTERVAL", "5m")
	t.Setenv("SUMMARY_MAX_CONCURRENCY", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.FetchInterval != 5*time.Minute {
		t.Errorf("FetchInterval = %v, want 5m", cfg.FetchInterval)
	}

	if cfg.SummaryMaxConcurrency != 2 {
		t.Errorf("SummaryMaxConcurrency = %d, want 2", cfg.SummaryMaxConcurrency)
	}
}
