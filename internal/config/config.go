// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // RECENCY_TZ must resolve in minimal containers
)

// Validation errors returned by Config.Validate.
var (
	ErrInvalidUpdateLimit  = errors.New("UPDATE_LIMIT must be at least 1")
	ErrInvalidUpdateWindow = errors.New("UPDATE_WINDOW must be positive")
	ErrInvalidFeedTimeout  = errors.New("FEED_TIMEOUT must be positive")
	ErrInvalidRecencyTZ    = errors.New("RECENCY_TZ is not a known time zone")
	ErrInvalidLogLevel     = errors.New("LOG_LEVEL must be one of debug, info, warn, error")
	ErrInvalidRate         = errors.New("API_RATE_PER_SEC and API_RATE_BURST must not be negative")
)

// Config holds the full application configuration.
type Config struct {
	DB     DBConfig
	Server ServerConfig
	Log    LogConfig
	Ingest IngestConfig
	Admin  AdminConfig
	S3     S3Config
	Redis  RedisConfig
	Kafka  KafkaConfig
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host          string
	Port          int
	User          string
	Pass          string
	DBName        string
	SSLMode       string
	MaxConns      int
	MigrationsDir string
}

// DSN returns a PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Pass +
		"@" + c.Host + ":" + strconv.Itoa(c.Port) +
		"/" + c.DBName + "?sslmode=" + c.SSLMode
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port string
	Host string

	// Per-client-IP limit on the public API. RatePerSec 0 disables it.
	RatePerSec float64
	RateBurst  int

	CORSOrigins []string
}

// Addr returns the full listen address (host:port).
func (c ServerConfig) Addr() string {
	return c.Host + c.Port
}

// LogConfig selects the slog level.
type LogConfig struct {
	Level string
}

// IngestConfig controls the RSS ingestion pipeline.
type IngestConfig struct {
	FeedsFile          string // optional YAML registry; empty uses the built-in catalog
	FeedTimeout        time.Duration
	MaxConcurrentFeeds int // 0 means one worker per source
	UpdateLimit        int
	UpdateWindow       time.Duration
	RecencyTZ          string
	Schedule           string
	StaleRunAfter      time.Duration
	ImageLookupLimit   int
	RunTimeout         time.Duration
}

// Location resolves RecencyTZ, defaulting to UTC.
func (c IngestConfig) Location() (*time.Location, error) {
	if c.RecencyTZ == "" || strings.EqualFold(c.RecencyTZ, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.RecencyTZ)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecencyTZ, c.RecencyTZ)
	}
	return loc, nil
}

// AdminConfig protects the manual update endpoint.
type AdminConfig struct {
	// TokenHash is a bcrypt hash of the admin bearer token. Empty leaves the
	// endpoint open.
	TokenHash string
}

// S3Config holds S3-compatible object storage parameters for the run archive.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// RedisConfig holds the response cache connection. Empty Addr disables the
// cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig holds the run event producer settings. No brokers disables
// publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DB: DBConfig{
			Host:          envOr("DB_HOST", "localhost"),
			Port:          envOrInt("DB_PORT", 5432),
			User:          envOr("DB_USER", "unbiased"),
			Pass:          envOr("DB_PASS", "unbiased"),
			DBName:        envOr("DB_NAME", "unbiased"),
			SSLMode:       envOr("DB_SSLMODE", "disable"),
			MaxConns:      envOrInt("DB_MAX_CONNS", 10),
			MigrationsDir: envOr("MIGRATIONS_DIR", "migrations"),
		},
		Server: ServerConfig{
			Port:        envOr("SERVER_PORT", ":8080"),
			Host:        envOr("SERVER_HOST", ""),
			RatePerSec:  envOrFloat("API_RATE_PER_SEC", 10),
			RateBurst:   envOrInt("API_RATE_BURST", 20),
			CORSOrigins: envOrList("CORS_ORIGINS", []string{"*"}),
		},
		Log: LogConfig{
			Level: envOr("LOG_LEVEL", "info"),
		},
		Ingest: IngestConfig{
			FeedsFile:          envOr("FEEDS_FILE", ""),
			FeedTimeout:        envOrDuration("FEED_TIMEOUT", 20*time.Second),
			MaxConcurrentFeeds: envOrInt("MAX_CONCURRENT_FEEDS", 0),
			UpdateLimit:        envOrInt("UPDATE_LIMIT", 3),
			UpdateWindow:       envOrDuration("UPDATE_WINDOW", 24*time.Hour),
			RecencyTZ:          envOr("RECENCY_TZ", "UTC"),
			Schedule:           envOr("UPDATE_SCHEDULE", "0 */8 * * *"),
			StaleRunAfter:      envOrDuration("STALE_RUN_AFTER", time.Hour),
			ImageLookupLimit:   envOrInt("IMAGE_LOOKUP_LIMIT", 0),
			RunTimeout:         envOrDuration("RUN_TIMEOUT", 15*time.Minute),
		},
		Admin: AdminConfig{
			TokenHash: envOr("ADMIN_TOKEN_HASH", ""),
		},
		S3: S3Config{
			Endpoint:  envOr("S3_ENDPOINT", ""),
			Bucket:    envOr("S3_BUCKET", "unbiased-runs"),
			AccessKey: envOr("S3_ACCESS_KEY", ""),
			SecretKey: envOr("S3_SECRET_KEY", ""),
			Region:    envOr("S3_REGION", "us-east-1"),
		},
		Redis: RedisConfig{
			Addr:     envOr("REDIS_ADDR", ""),
			Password: envOr("REDIS_PASS", ""),
			DB:       envOrInt("REDIS_DB", 0),
			TTL:      envOrDuration("CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: envOrList("KAFKA_BROKERS", nil),
			Topic:   envOr("KAFKA_TOPIC", "unbiased.updates"),
		},
	}
}

// Validate reports the first setting that would make the service misbehave.
func (c Config) Validate() error {
	if c.Ingest.UpdateLimit < 1 {
		return ErrInvalidUpdateLimit
	}
	if c.Ingest.UpdateWindow <= 0 {
		return ErrInvalidUpdateWindow
	}
	if c.Ingest.FeedTimeout <= 0 {
		return ErrInvalidFeedTimeout
	}
	if _, err := c.Ingest.Location(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}
	if c.Server.RatePerSec < 0 || c.Server.RateBurst < 0 {
		return ErrInvalidRate
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envOrList splits a comma-separated value, dropping empty entries.
func envOrList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
