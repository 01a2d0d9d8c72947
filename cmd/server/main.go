package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "threatwatch/internal/adapters/http"
	"threatwatch/internal/app"
	"threatwatch/internal/config"
	"threatwatch/internal/logging"
	alertsvc "threatwatch/internal/services/alerts"
	"threatwatch/internal/services/stats"
	threatsvc "threatwatch/internal/services/threats"
	"threatwatch/internal/workers/scanrunner"
)

func main() {
	log := logging.Init("threatwatch")

	cfg, err := config.Load()
	if err != nil {
		log.Warn("config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("store unavailable", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	notifier, closeNotifier := app.Notifier(cfg, log)
	defer closeNotifier()

	primary, fallback := app.Sources(cfg, false)
	pipeline := app.Pipeline(cfg, store, primary, fallback, notifier, log)
	runner := scanrunner.New(store, pipeline, log)

	if err := runner.Schedule(ctx, cfg.ScanSchedule); err != nil {
		log.Error("scan schedule", "err", err)
		os.Exit(1)
	}

	threats := threatsvc.New(store, stats.New(store, cfg.StatsWindow))
	alerts := alertsvc.New(store, log)
	srv := httpadapter.New(runner, pipeline, store, threats, alerts, log)

	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env, "live_feed", cfg.LiveFeed)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", "err", err)
	}
}
