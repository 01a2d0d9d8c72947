// Command ingest runs a single ingestion pass against the configured store
// and prints the summary. Useful for cron jobs outside the server and for
// seeding a local database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"threatwatch/internal/app"
	"threatwatch/internal/config"
	"threatwatch/internal/logging"
	"threatwatch/internal/services/ingest"
	"threatwatch/internal/workers/scanrunner"
)

func main() {
	static := flag.Bool("static", false, "ingest the built-in catalogue instead of the configured feeds")
	trigger := flag.String("trigger", "cli", "trigger recorded on the scan row")
	flag.Parse()

	log := logging.Init("threatwatch-ingest")
	cfg, err := config.Load()
	if err != nil {
		log.Warn("config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx, log, cfg, *static, *trigger)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, log *slog.Logger, cfg config.Config, static bool, trigger string) int {
	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("store unavailable", "err", err)
		return 1
	}
	defer closeStore()

	notifier, closeNotifier := app.Notifier(cfg, log)
	defer closeNotifier()

	primary, fallback := app.Sources(cfg, static)
	runner := scanrunner.New(store, app.Pipeline(cfg, store, primary, fallback, notifier, log), log)

	scanID, sum, err := runner.RunInline(ctx, trigger)
	if err != nil {
		log.Error("ingestion failed", "scan_id", scanID, "err", err)
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(struct {
		ScanID string `json:"scan_id"`
		ingest.Summary
	}{scanID, sum})
	return 0
}
