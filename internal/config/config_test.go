package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", "")
	cfg, err := Load()
	if err == nil {
		t.Fatal("expected missing store error")
	}
	if cfg.ListenAddr != ":8080" || cfg.StatsWindow != 24*time.Hour || cfg.IngestConcurrency != 1 || cfg.LiveFeed {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SQLITE_PATH", "/tmp/tw.sqlite")
	t.Setenv("LIVE_FEED", "true")
	t.Setenv("FEED_LIMIT", "50")
	t.Setenv("SOURCE_TIMEOUT", "3s")
	t.Setenv("STORE_TIMEOUT", "2")
	t.Setenv("STATS_WINDOW", "bogus")
	t.Setenv("SCAN_SCHEDULE", "@every 15m")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.LiveFeed || cfg.FeedLimit != 50 || cfg.ScanSchedule != "@every 15m" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.SourceTimeout != 3*time.Second || cfg.StoreTimeout != 2*time.Second {
		t.Fatalf("timeouts source=%s store=%s", cfg.SourceTimeout, cfg.StoreTimeout)
	}
	if cfg.StatsWindow != 24*time.Hour {
		t.Fatalf("invalid window should fall back, got %s", cfg.StatsWindow)
	}
}
