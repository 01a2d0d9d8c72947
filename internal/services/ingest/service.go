package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"threatwatch/internal/domain"
	"threatwatch/internal/metrics"
	"threatwatch/internal/ports"
	"threatwatch/internal/services/stats"
)

// Summary is the outcome of one ingestion run.
type Summary struct {
	NewIndicators  int                   `json:"new_indicators"`
	SeverityCounts domain.SeverityCounts `json:"severity_counts"`
	Source         string                `json:"source"`
	Candidates     int                   `json:"candidates"`
	Duplicates     int                   `json:"duplicates"`
	Rejected       int                   `json:"rejected"`
	Alerts         int                   `json:"alerts"`
}

// Pipeline deduplicates candidates against the store, persists new
// indicators, raises alerts for high/critical ones and reports windowed
// severity counts. Re-ingesting a known indicator is a no-op; it never
// re-alerts.
type Pipeline struct {
	store    ports.IndicatorStore
	primary  ports.CandidateSource
	fallback ports.CandidateSource
	notifier ports.AlertNotifier

	window        time.Duration
	storeTimeout  time.Duration
	sourceTimeout time.Duration
	concurrency   int
	filter        *dedupFilter

	now func() time.Time
	log *slog.Logger
}

type Option func(*Pipeline)

// WithPrimary sets the preferred source, usually a live feed.
func WithPrimary(src ports.CandidateSource) Option { return func(p *Pipeline) { p.primary = src } }

// WithFallback sets the source used when the primary fails or is absent.
func WithFallback(src ports.CandidateSource) Option { return func(p *Pipeline) { p.fallback = src } }

func WithNotifier(n ports.AlertNotifier) Option { return func(p *Pipeline) { p.notifier = n } }

func WithWindow(d time.Duration) Option { return func(p *Pipeline) { p.window = d } }

func WithStoreTimeout(d time.Duration) Option { return func(p *Pipeline) { p.storeTimeout = d } }

func WithSourceTimeout(d time.Duration) Option { return func(p *Pipeline) { p.sourceTimeout = d } }

// WithConcurrency bounds how many candidates are in flight at once. Values
// above one rely on the store's unique constraint to settle races.
func WithConcurrency(n int) Option { return func(p *Pipeline) { p.concurrency = n } }

// WithDedupFilter enables a bloom prefilter sized for n indicators. Values
// the filter has never seen go straight to insert.
func WithDedupFilter(n uint) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.filter = newDedupFilter(n)
		}
	}
}

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }

func New(store ports.IndicatorStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:         store,
		window:        stats.DefaultWindow,
		storeTimeout:  5 * time.Second,
		sourceTimeout: 10 * time.Second,
		concurrency:   1,
		now:           time.Now,
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Ingest pulls one batch from the configured sources and ingests it. The
// returned error, if any, is a *domain.IngestionFailedError. Rows committed
// before a failure stay committed.
func (p *Pipeline) Ingest(ctx context.Context) (Summary, error) {
	start := time.Now()
	defer func() { metrics.IngestDuration.Observe(time.Since(start).Seconds()) }()

	candidates, source, err := p.fetch(ctx)
	if err != nil {
		metrics.IngestRuns.WithLabelValues("failed").Inc()
		p.log.Error("ingestion failed", "stage", "fetch", "err", err)
		return Summary{}, &domain.IngestionFailedError{Cause: err}
	}
	sum, err := p.IngestBatch(ctx, candidates)
	sum.Source = source
	return sum, err
}

// IngestBatch ingests an already fetched batch.
func (p *Pipeline) IngestBatch(ctx context.Context, candidates []domain.Candidate) (Summary, error) {
	var t tally
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return p.process(gctx, c, &t) })
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sum := Summary{
		NewIndicators: int(t.inserted.Load()),
		Candidates:    len(candidates),
		Duplicates:    int(t.duplicates.Load()),
		Rejected:      int(t.rejected.Load()),
		Alerts:        int(t.alerts.Load()),
	}
	if err != nil {
		metrics.IngestRuns.WithLabelValues("failed").Inc()
		p.log.Error("ingestion aborted", "stage", "batch", "inserted", sum.NewIndicators, "err", err)
		return sum, &domain.IngestionFailedError{Cause: err}
	}

	cctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	counts, err := p.store.CountBySeverity(cctx, p.now().Add(-p.window))
	if err != nil {
		metrics.IngestRuns.WithLabelValues("failed").Inc()
		err = storeErr("count by severity", err)
		p.log.Error("ingestion failed", "stage", "stats", "err", err)
		return sum, &domain.IngestionFailedError{Cause: err}
	}
	sum.SeverityCounts = counts

	metrics.IngestRuns.WithLabelValues("completed").Inc()
	p.log.Info("ingestion completed",
		"candidates", sum.Candidates, "new", sum.NewIndicators, "duplicates", sum.Duplicates,
		"rejected", sum.Rejected, "alerts", sum.Alerts)
	return sum, nil
}

// Preview fetches a batch and tallies it locally without touching the store.
func (p *Pipeline) Preview(ctx context.Context) (Preview, error) {
	candidates, source, err := p.fetch(ctx)
	if err != nil {
		return Preview{}, err
	}
	valid := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Validate() == nil {
			valid = append(valid, c)
		}
	}
	return Preview{
		Source:     source,
		Candidates: stats.Rank(valid),
		Counts:     stats.Aggregate(valid),
	}, nil
}

// Preview is an unpersisted, ranked view of what a source currently reports.
type Preview struct {
	Source     string                `json:"source"`
	Candidates []domain.Candidate    `json:"candidates"`
	Counts     domain.SeverityCounts `json:"threat_counts"`
}

type tally struct {
	inserted, duplicates, rejected, alerts atomic.Int64
}

func (p *Pipeline) process(ctx context.Context, c domain.Candidate, t *tally) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		t.rejected.Add(1)
		metrics.CandidatesProcessed.WithLabelValues("rejected").Inc()
		p.log.Warn("candidate rejected", "indicator", c.Value, "source", c.Source, "err", err)
		return nil
	}

	if p.filter.mayContain(c.Value) {
		exists, err := p.exists(ctx, c.Value)
		if err != nil {
			return storeErr(fmt.Sprintf("dedup check %q", c.Value), err)
		}
		if exists {
			t.duplicates.Add(1)
			metrics.CandidatesProcessed.WithLabelValues("duplicate").Inc()
			return nil
		}
	}

	sctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	ind, err := p.store.InsertIndicator(sctx, c.Indicator())
	cancel()
	switch {
	case errors.Is(err, domain.ErrConstraintViolation):
		p.filter.add(c.Value)
		t.duplicates.Add(1)
		metrics.CandidatesProcessed.WithLabelValues("duplicate").Inc()
		p.log.Debug("insert lost race", "indicator", c.Value)
		return nil
	case err != nil:
		return storeErr(fmt.Sprintf("insert %q", c.Value), err)
	}
	p.filter.add(c.Value)
	t.inserted.Add(1)
	metrics.CandidatesProcessed.WithLabelValues("inserted").Inc()
	p.log.Info("new threat detected", "indicator", ind.Value, "type", ind.Kind, "severity", ind.Severity)

	if ind.Severity.Alertable() && p.raiseAlert(ctx, c, ind) {
		t.alerts.Add(1)
	}
	return nil
}

func (p *Pipeline) exists(ctx context.Context, value string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	ok, err := p.store.Exists(ctx, value)
	if err == nil && ok {
		p.filter.add(value)
	}
	return ok, err
}

// raiseAlert persists the alert for a new indicator. Failure is logged and
// leaves the indicator in place.
func (p *Pipeline) raiseAlert(ctx context.Context, c domain.Candidate, ind domain.Indicator) bool {
	alert := domain.NewAlert(ind, c.AlertTitle, c.AlertDescription)

	// a stored indicator always gets its alert, even if the caller is gone
	ctx = context.WithoutCancel(ctx)
	actx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	stored, err := p.store.InsertAlert(actx, alert)
	cancel()
	if err != nil {
		metrics.AlertFailures.Inc()
		p.log.Error("alert not persisted", "indicator", ind.Value, "err", fmt.Errorf("%w: %v", domain.ErrAlertPersistFailed, err))
		return false
	}
	metrics.AlertsCreated.WithLabelValues(string(stored.Severity)).Inc()

	if p.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
		err := p.notifier.Notify(nctx, stored, ind)
		cancel()
		if err != nil {
			metrics.AlertFailures.Inc()
			p.log.Warn("alert notify failed", "alert", stored.ID, "err", err)
		}
	}
	return true
}

func (p *Pipeline) fetch(ctx context.Context) ([]domain.Candidate, string, error) {
	var primaryErr error
	if p.primary != nil {
		cands, err := p.fetchFrom(ctx, p.primary)
		if err == nil {
			return cands, p.primary.Name(), nil
		}
		primaryErr = err
		if p.fallback != nil {
			p.log.Warn("primary source failed, falling back", "source", p.primary.Name(), "fallback", p.fallback.Name(), "err", err)
		}
	}
	if p.fallback == nil {
		if primaryErr == nil {
			primaryErr = fmt.Errorf("%w: no candidate source configured", domain.ErrSourceUnavailable)
		}
		return nil, "", primaryErr
	}
	cands, err := p.fetchFrom(ctx, p.fallback)
	if err != nil {
		return nil, "", errors.Join(primaryErr, err)
	}
	return cands, p.fallback.Name(), nil
}

func (p *Pipeline) fetchFrom(ctx context.Context, src ports.CandidateSource) ([]domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, p.sourceTimeout)
	defer cancel()
	cands, err := src.Fetch(ctx)
	if err != nil {
		metrics.SourceFailures.WithLabelValues(src.Name()).Inc()
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, src.Name(), err)
		}
		return nil, err
	}
	return cands, nil
}

// storeErr classifies any store failure on a required operation, including
// deadlines, as domain.ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
