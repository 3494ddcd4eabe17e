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

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	Session    SessionConfig
	Storefront StorefrontConfig
	Catalog    CatalogConfig
	DB         DatabaseConfig
	Redis      RedisConfig
	Worker     WorkerConfig

	// CORSAllowedOrigins lists the storefront origins allowed to call the API.
	CORSAllowedOrigins []string

	// BundlePath points at the bundle definition file read by LoadBundle.
	BundlePath    string
	MigrationsDir string
}

// SessionConfig contains configurator session parameters.
type SessionConfig struct {
	Secret  string
	TTL     time.Duration
	IdleTTL time.Duration

	// OperatorSecret signs operator tokens for the checkout audit endpoints.
	// Empty keeps those endpoints closed.
	OperatorSecret string
}

// StorefrontConfig contains the storefront AJAX API endpoint and client policy.
type StorefrontConfig struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
}

// CatalogConfig controls the product cache.
type CatalogConfig struct {
	FetchTimeout time.Duration
	RedisTTL     time.Duration
}

// DatabaseConfig contains PostgreSQL connection parameters.
// An empty Host disables the checkout audit log.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether a database was configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig contains Redis connection parameters.
// An empty Host keeps the catalog cache in memory only.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether Redis was configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	CatalogRefreshInterval time.Duration
	SessionSweepInterval   time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.BundlePath = getEnv("BUNDLE_CONFIG_PATH", "bundle.yaml")
	cfg.MigrationsDir = getEnv("MIGRATIONS_DIR", "migrations")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS")

	// Storefront
	cfg.Storefront = StorefrontConfig{
		BaseURL:  getEnv("STOREFRONT_BASE_URL", ""),
		RetryMax: getEnvInt("STOREFRONT_RETRY_MAX", 3),
	}

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", ""),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	cfg.Session.Secret = getEnv("SESSION_SECRET", "")
	cfg.Session.OperatorSecret = getEnv("OPERATOR_SECRET", "")

	// Durations
	var err error
	if cfg.Session.TTL, err = parseDurationEnv("SESSION_TTL", "2h"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.Session.IdleTTL, err = parseDurationEnv("SESSION_IDLE_TTL", "30m"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_IDLE_TTL: %w", err)
	}
	if cfg.Storefront.Timeout, err = parseDurationEnv("STOREFRONT_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid STOREFRONT_TIMEOUT: %w", err)
	}
	if cfg.Catalog.FetchTimeout, err = parseDurationEnv("CATALOG_FETCH_TIMEOUT", "10s"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_FETCH_TIMEOUT: %w", err)
	}
	if cfg.Catalog.RedisTTL, err = parseDurationEnv("CATALOG_CACHE_TTL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL: %w", err)
	}
	if cfg.Worker.CatalogRefreshInterval, err = parseDurationEnv("CATALOG_REFRESH_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_REFRESH_INTERVAL: %w", err)
	}
	if cfg.Worker.SessionSweepInterval, err = parseDurationEnv("SESSION_SWEEP_INTERVAL", "1m"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_SWEEP_INTERVAL: %w", err)
	}

	if cfg.Storefront.BaseURL == "" {
		return nil, errors.New("STOREFRONT_BASE_URL must be set")
	}
	if cfg.Session.Secret == "" {
		return nil, errors.New("SESSION_SECRET must be set for session tokens")
	}
	if cfg.Session.OperatorSecret != "" && cfg.Session.OperatorSecret == cfg.Session.Secret {
		return nil, errors.New("OPERATOR_SECRET must differ from SESSION_SECRET")
	}
	if cfg.DB.Enabled() && (cfg.DB.User == "" || cfg.DB.Name == "") {
		return nil, errors.New("database configuration incomplete: ensure DB_USER and DB_NAME are set with DB_HOST")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvList splits a comma-separated environment variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
