package config

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"UPDATE_LIMIT", "UPDATE_WINDOW", "FEED_TIMEOUT", "RECENCY_TZ", "KAFKA_BROKERS", "REDIS_ADDR", "SERVER_PORT"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Ingest.UpdateLimit != 3 {
		t.Errorf("UpdateLimit = %d; want 3", cfg.Ingest.UpdateLimit)
	}
	if cfg.Ingest.UpdateWindow != 24*time.Hour {
		t.Errorf("UpdateWindow = %v; want 24h", cfg.Ingest.UpdateWindow)
	}
	if cfg.Ingest.FeedTimeout != 20*time.Second {
		t.Errorf("FeedTimeout = %v; want 20s", cfg.Ingest.FeedTimeout)
	}
	if cfg.Kafka.Brokers != nil {
		t.Errorf("Brokers = %v; want nil", cfg.Kafka.Brokers)
	}
	if cfg.Server.Addr() != ":8080" {
		t.Errorf("Addr = %q", cfg.Server.Addr())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("UPDATE_LIMIT", "5")
	t.Setenv("UPDATE_WINDOW", "12h")
	t.Setenv("FEED_TIMEOUT", "not-a-duration")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("DB_PORT", "6543")

	cfg := Load()
	if cfg.Ingest.UpdateLimit != 5 || cfg.Ingest.UpdateWindow != 12*time.Hour {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Ingest.FeedTimeout != 20*time.Second {
		t.Errorf("bad duration should fall back; got %v", cfg.Ingest.FeedTimeout)
	}
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.Kafka.Brokers, want) {
		t.Errorf("Brokers = %v; want %v", cfg.Kafka.Brokers, want)
	}
	if cfg.DB.Port != 6543 {
		t.Errorf("DB.Port = %d; want 6543", cfg.DB.Port)
	}
}

func TestDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "u", Pass: "p", DBName: "news", SSLMode: "require"}
	if got, want := c.DSN(), "postgres://u:p@db:5432/news?sslmode=require"; got != want {
		t.Errorf("DSN = %q; want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Log: LogConfig{Level: "info"},
			Ingest: IngestConfig{
				UpdateLimit:  3,
				UpdateWindow: 24 * time.Hour,
				FeedTimeout:  20 * time.Second,
				RecencyTZ:    "UTC",
			},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero limit", func(c *Config) { c.Ingest.UpdateLimit = 0 }, ErrInvalidUpdateLimit},
		{"zero window", func(c *Config) { c.Ingest.UpdateWindow = 0 }, ErrInvalidUpdateWindow},
		{"zero timeout", func(c *Config) { c.Ingest.FeedTimeout = 0 }, ErrInvalidFeedTimeout},
		{"bad tz", func(c *Config) { c.Ingest.RecencyTZ = "Mars/Olympus" }, ErrInvalidRecencyTZ},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogLevel},
		{"negative rate", func(c *Config) { c.Server.RatePerSec = -1 }, ErrInvalidRate},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := base()
			c.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, c.want) {
				t.Fatalf("Validate = %v; want %v", err, c.want)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
}

func TestLocation(t *testing.T) {
	loc, err := IngestConfig{}.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("empty tz = %v, %v; want UTC", loc, err)
	}
}
