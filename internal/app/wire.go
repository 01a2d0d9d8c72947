// Package app assembles stores, sources and the ingestion pipeline from
// configuration. Both binaries share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"threatwatch/internal/adapters/feeds"
	"threatwatch/internal/adapters/natsbus"
	pg "threatwatch/internal/adapters/postgres"
	"threatwatch/internal/adapters/sqlite"
	"threatwatch/internal/config"
	"threatwatch/internal/ports"
	"threatwatch/internal/services/ingest"
)

const defaultSQLitePath = "threatwatch.sqlite"

var (
	_ ports.Store = (*pg.DB)(nil)
	_ ports.Store = (*sqlite.Store)(nil)
)

// OpenStore connects to Postgres when DATABASE_URL is set and otherwise to a
// local sqlite file. Migrations are applied before returning.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger) (ports.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("store ready", "backend", "postgres")
		return db, db.Close, nil
	}

	path := cfg.SQLitePath
	if path == "" {
		path = defaultSQLitePath
	}
	s, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	log.Info("store ready", "backend", "sqlite", "path", path)
	return s, func() { _ = s.Close() }, nil
}

// Sources picks the candidate sources. With LIVE_FEED the URLhaus feed is
// primary and the synthetic generator the fallback; otherwise only the
// generator runs. static replaces both with the built-in catalogue.
func Sources(cfg config.Config, static bool) (primary, fallback ports.CandidateSource) {
	if static {
		return feeds.Catalogue(), nil
	}
	synth := feeds.NewSynthetic(cfg.SyntheticCount, 0)
	if cfg.LiveFeed {
		return feeds.NewURLhaus(cfg.FeedURL, cfg.FeedLimit, cfg.FeedAuthKey, cfg.SourceTimeout), synth
	}
	return nil, synth
}

// Notifier connects the NATS alert publisher when NATS_URL is set. A failed
// connection is logged and alerts are simply not published.
func Notifier(cfg config.Config, log *slog.Logger) (ports.AlertNotifier, func()) {
	if cfg.NATSURL == "" {
		return nil, func() {}
	}
	n, err := natsbus.Connect(cfg.NATSURL, cfg.NATSAlertSubject)
	if err != nil {
		log.Warn("alert publishing disabled", "err", err)
		return nil, func() {}
	}
	log.Info("publishing alerts", "nats", cfg.NATSURL, "subject", cfg.NATSAlertSubject)
	return n, n.Close
}

// Pipeline builds the ingestion pipeline for store.
func Pipeline(cfg config.Config, store ports.IndicatorStore, primary, fallback ports.CandidateSource, notifier ports.AlertNotifier, log *slog.Logger) *ingest.Pipeline {
	opts := []ingest.Option{
		ingest.WithWindow(cfg.StatsWindow),
		ingest.WithStoreTimeout(cfg.StoreTimeout),
		ingest.WithSourceTimeout(cfg.SourceTimeout),
		ingest.WithConcurrency(cfg.IngestConcurrency),
		ingest.WithLogger(log),
	}
	if primary != nil {
		opts = append(opts, ingest.WithPrimary(primary))
	}
	if fallback != nil {
		opts = append(opts, ingest.WithFallback(fallback))
	}
	if notifier != nil {
		opts = append(opts, ingest.WithNotifier(notifier))
	}
	if cfg.DedupFilterSize > 0 {
		opts = append(opts, ingest.WithDedupFilter(uint(cfg.DedupFilterSize)))
	}
	return ingest.New(store, opts...)
}
