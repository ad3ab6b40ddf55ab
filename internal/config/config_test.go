package config

import (
	"errors"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_NAME", "curation-grid")
	t.Setenv("APP_ENV", "test")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("FEED_DRIVER", "")
	t.Setenv("FEED_BASE_URL", "https://feed.example.com/api/")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	for _, k := range []string{
		"GRID_PAGE_SIZE", "GRID_CURATED_PAGE_SIZE", "GRID_RETRY_DELAY",
		"GRID_LOOKAHEAD", "SESSION_IDLE_TIMEOUT", "FEED_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Feed.Driver != FeedDriverHTTP {
		t.Fatalf("expected http driver, got %q", cfg.Feed.Driver)
	}
	if cfg.Feed.BaseURL != "https://feed.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Feed.BaseURL)
	}
	if cfg.Grid.PageSize != 50 || cfg.Grid.CuratedPageSize != 100 {
		t.Fatalf("unexpected page sizes: %+v", cfg.Grid)
	}
	if cfg.Grid.RetryDelay != time.Second {
		t.Fatalf("expected 1s retry delay, got %v", cfg.Grid.RetryDelay)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Fatalf("expected 30m idle timeout, got %v", cfg.Session.IdleTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FEED_BASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "")

	_, err := Load()
	if !errors.Is(err, errMissingRequiredEnv) {
		t.Fatalf("expected missing env error, got %v", err)
	}
}

func TestLoad_PostgresDriverRequiresDatabase(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FEED_DRIVER", "postgres")
	t.Setenv("FEED_BASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("DB_USER", "")

	_, err := Load()
	if !errors.Is(err, errMissingRequiredEnv) {
		t.Fatalf("expected missing env error, got %v", err)
	}

	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "feed")
	t.Setenv("DB_USER", "curator")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Feed.BaseURL != "" {
		t.Fatalf("expected no base url for postgres driver, got %q", cfg.Feed.BaseURL)
	}
	if cfg.Database.SlowQuery != 200*time.Millisecond {
		t.Fatalf("expected default slow query threshold, got %v", cfg.Database.SlowQuery)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GRID_PAGE_SIZE", "zero")
	t.Setenv("GRID_RETRY_DELAY", "soon")

	_, err := Load()
	if !errors.Is(err, errInvalidEnv) {
		t.Fatalf("expected invalid env error, got %v", err)
	}
}
