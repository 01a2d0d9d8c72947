package ports

import (
	"context"
	"time"

	"threatwatch/internal/domain"
)

// CandidateSource produces candidate observations. One attempt per call;
// failures wrap domain.ErrSourceUnavailable. Sources never touch storage.
type CandidateSource interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Candidate, error)
}

// AlertNotifier fans a persisted alert out to subscribers.
type AlertNotifier interface {
	Notify(ctx context.Context, alert domain.Alert, ind domain.Indicator) error
}

// Threats serves the dashboard's indicator queries.
type Threats interface {
	List(ctx context.Context, f IndicatorFilter) ([]domain.Indicator, error)
	Lookup(ctx context.Context, value string) (domain.Indicator, error)
	Counts(ctx context.Context, window time.Duration) (domain.SeverityCounts, error)
}

// Alerts lists alerts and moves them through their workflow.
type Alerts interface {
	List(ctx context.Context, f AlertFilter) ([]domain.Alert, error)
	Transition(ctx context.Context, id string, to domain.AlertStatus) (domain.Alert, error)
}
