package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	SQLitePath  string

	// Sources
	FeedURL        string
	FeedAuthKey    string
	FeedLimit      int
	LiveFeed       bool
	SyntheticCount int

	SourceTimeout     time.Duration
	StoreTimeout      time.Duration
	StatsWindow       time.Duration
	IngestConcurrency int
	DedupFilterSize   int
	ScanSchedule      string

	NATSURL          string
	NATSAlertSubject string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads configuration from the environment. A missing store is reported
// as an error but the returned Config is still usable; callers decide.
func Load() (Config, error) {
	cfg := Config{
		Env:         getenv("APP_ENV", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  os.Getenv("SQLITE_PATH"),

		FeedURL:        getenv("FEED_URL", "https://urlhaus-api.abuse.ch/v1"),
		FeedAuthKey:    os.Getenv("FEED_AUTH_KEY"),
		FeedLimit:      getenvInt("FEED_LIMIT", 25),
		LiveFeed:       getenvBool("LIVE_FEED", false),
		SyntheticCount: getenvInt("SYNTHETIC_COUNT", 15),

		SourceTimeout:     getenvDuration("SOURCE_TIMEOUT", 10*time.Second),
		StoreTimeout:      getenvDuration("STORE_TIMEOUT", 5*time.Second),
		StatsWindow:       getenvDuration("STATS_WINDOW", 24*time.Hour),
		IngestConcurrency: getenvInt("INGEST_CONCURRENCY", 1),
		DedupFilterSize:   getenvInt("DEDUP_FILTER_SIZE", 0),
		ScanSchedule:      os.Getenv("SCAN_SCHEDULE"),

		NATSURL:          os.Getenv("NATS_URL"),
		NATSAlertSubject: getenv("NATS_ALERT_SUBJECT", "threatwatch.alerts"),
	}
	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		// Not fatal for local runs; callers fall back to a local sqlite file.
		return cfg, errors.New("neither DATABASE_URL nor SQLITE_PATH set")
	}
	return cfg, nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getenvDuration accepts Go durations ("90s") or plain seconds ("90").
func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
