package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DB struct {
	Pool *pgxpool.Pool

	// now stamps created_at and updated_at so the stats window and the
	// rows share one clock.
	now func() time.Time
}

type Option func(*DB)

// WithClock overrides the timestamp source for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

func Connect(ctx context.Context, url string, opts ...Option) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	db := &DB{Pool: pool, now: time.Now}
	for _, o := range opts {
		o(db)
	}
	return db, nil
}

func (db *DB) clock() time.Time {
	if db.now == nil {
		return time.Now().UTC()
	}
	return db.now().UTC()
}

func (db *DB) Close() { db.Pool.Close() }

// Migrate applies the embedded goose migrations through a database/sql
// handle borrowed from the pool.
func (db *DB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, r := range results {
		slog.Info("migration applied", "store", "postgres", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}
