package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Feed     FeedConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Grid     GridConfig
	Session  SessionConfig
	LogLevel string
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
}

const (
	FeedDriverHTTP     = "http"
	FeedDriverPostgres = "postgres"
)

type FeedConfig struct {
	Driver   string
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout time.Duration
	PoolMaxConns   int32
	AutoMigrate    bool
	SlowQuery      time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type AuthConfig struct {
	AccessSecret string
	AccessTTL    time.Duration
}

type GridConfig struct {
	PageSize         int
	CuratedPageSize  int
	MaxPageSize      int
	RetryDelay       time.Duration
	Lookahead        int
	Overscan         int
	RowHeight        float64
	MeasureThreshold int
}

type SessionConfig struct {
	IdleTimeout time.Duration
	ReapSpec    string
}

var (
	errMissingRequiredEnv = errors.New("missing required environment variables")
	errInvalidEnv         = errors.New("invalid environment variables")
)

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}

	var missing []string
	var invalid []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key, def string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		return v
	}
	optInt := func(key string, def int) int {
		raw := opt(key, "")
		if raw == "" {
			return def
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			invalid = append(invalid, key)
			return def
		}
		return v
	}
	optDuration := func(key string, def time.Duration) time.Duration {
		raw := opt(key, "")
		if raw == "" {
			return def
		}
		v, err := time.ParseDuration(raw)
		if err != nil || v < 0 {
			invalid = append(invalid, key)
			return def
		}
		return v
	}

	optBool := func(key string, def bool) bool {
		raw := opt(key, "")
		if raw == "" {
			return def
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return v
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
	}
	cfg.LogLevel = opt("LOG_LEVEL", "info")

	cfg.Feed = FeedConfig{
		Driver:   strings.ToLower(opt("FEED_DRIVER", FeedDriverHTTP)),
		APIToken: opt("FEED_API_TOKEN", ""),
		Timeout:  optDuration("FEED_TIMEOUT", 15*time.Second),
		CacheTTL: optDuration("FEED_CACHE_TTL", 30*time.Second),
	}
	switch cfg.Feed.Driver {
	case FeedDriverHTTP:
		cfg.Feed.BaseURL = strings.TrimRight(req("FEED_BASE_URL"), "/")
	case FeedDriverPostgres:
	default:
		invalid = append(invalid, "FEED_DRIVER")
	}

	cfg.Database = DatabaseConfig{
		DBHost:     opt("DB_HOST", ""),
		DBPort:     opt("DB_PORT", "5432"),
		DBName:     opt("DB_NAME", ""),
		DBUser:     opt("DB_USER", ""),
		DBPassword: opt("DB_PASSWORD", ""),
		DBSSLMode:  opt("DB_SSL_MODE", "disable"),

		ConnectTimeout: optDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		PoolMaxConns:   int32(optInt("DB_POOL_MAX_CONNS", 10)),
		AutoMigrate:    optBool("DB_AUTO_MIGRATE", true),
		SlowQuery:      optDuration("DB_SLOW_QUERY", 200*time.Millisecond),
	}
	if cfg.Feed.Driver == FeedDriverPostgres {
		cfg.Database.DBHost = req("DB_HOST")
		cfg.Database.DBName = req("DB_NAME")
		cfg.Database.DBUser = req("DB_USER")
	}

	cfg.Redis = RedisConfig{
		Host:     opt("REDIS_HOST", "localhost"),
		Port:     opt("REDIS_PORT", "6379"),
		Password: opt("REDIS_PASSWORD", ""),
	}

	cfg.Auth = AuthConfig{
		AccessSecret: req("JWT_ACCESS_SECRET"),
		AccessTTL:    optDuration("JWT_ACCESS_TTL", 12*time.Hour),
	}

	cfg.Grid = GridConfig{
		PageSize:         optInt("GRID_PAGE_SIZE", 50),
		CuratedPageSize:  optInt("GRID_CURATED_PAGE_SIZE", 100),
		MaxPageSize:      optInt("GRID_MAX_PAGE_SIZE", 500),
		RetryDelay:       optDuration("GRID_RETRY_DELAY", time.Second),
		Lookahead:        optInt("GRID_LOOKAHEAD", 1),
		Overscan:         optInt("GRID_OVERSCAN", 8),
		RowHeight:        float64(optInt("GRID_ROW_HEIGHT", 44)),
		MeasureThreshold: optInt("GRID_MEASURE_THRESHOLD", 1000),
	}

	cfg.Session = SessionConfig{
		IdleTimeout: optDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		ReapSpec:    opt("SESSION_REAP_SPEC", "@every 1m"),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errInvalidEnv, strings.Join(invalid, ", "))
	}

	return cfg, nil
}
