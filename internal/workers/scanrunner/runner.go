package scanrunner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"threatwatch/internal/ports"
	"threatwatch/internal/services/ingest"
)

// Ingestor performs one ingestion pass.
type Ingestor interface {
	Ingest(ctx context.Context) (ingest.Summary, error)
}

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Runner records every ingestion pass as a scan row. Runs are serialised
// within the process so two triggers never ingest the same batch at once.
type Runner struct {
	Runs     ports.RunRepository
	Ingestor Ingestor
	Log      *slog.Logger

	mu sync.Mutex
}

func New(runs ports.RunRepository, ing Ingestor, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{Runs: runs, Ingestor: ing, Log: log}
}

// RunInline starts a scan, ingests synchronously, and marks the scan completed
// or failed. The scan id is returned whenever the scan row was created.
func (r *Runner) RunInline(ctx context.Context, trigger string) (string, ingest.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	scanID, err := r.Runs.StartRun(ctx, trigger)
	if err != nil {
		return "", ingest.Summary{}, fmt.Errorf("start scan: %w", err)
	}
	log := r.logger().With("scan_id", scanID, "trigger", trigger)

	sum, err := r.Ingestor.Ingest(ctx)
	// bookkeeping outlives a cancelled request
	bctx := context.WithoutCancel(ctx)
	if err != nil {
		if ferr := r.Runs.FailRun(bctx, scanID, err.Error()); ferr != nil {
			log.Error("mark scan failed", "err", ferr)
		}
		return scanID, sum, err
	}
	if err := r.Runs.CompleteRun(bctx, scanID, sum.NewIndicators, sum.SeverityCounts); err != nil {
		log.Error("mark scan completed", "err", err)
	}
	log.Info("scan completed", "source", sum.Source, "new", sum.NewIndicators)
	return scanID, sum, nil
}

// Schedule runs a scan on every tick of expr (standard cron syntax or
// descriptors such as "@every 15m") until ctx is done. An empty expr
// disables scheduling.
func (r *Runner) Schedule(ctx context.Context, expr string) error {
	if expr == "" {
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	entryID, err := c.AddFunc(expr, func() {
		if _, _, err := r.RunInline(ctx, TriggerScheduled); err != nil {
			r.logger().Warn("scheduled scan failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("add scan schedule %q: %w", expr, err)
	}
	c.Start()
	r.logger().Info("scan schedule added", "cron", expr, "entry_id", entryID)

	go func() {
		<-ctx.Done()
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(30 * time.Second):
			r.logger().Warn("scan scheduler stop timeout")
		}
	}()
	return nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}
