package ports

import (
	"context"
	"time"

	"threatwatch/internal/domain"
)

// IndicatorStore is the store gateway the ingestion pipeline writes through.
// InsertIndicator fails with domain.ErrConstraintViolation when the value is
// already stored; transport failures wrap domain.ErrStoreUnavailable.
type IndicatorStore interface {
	Exists(ctx context.Context, value string) (bool, error)
	InsertIndicator(ctx context.Context, ind domain.Indicator) (domain.Indicator, error)
	InsertAlert(ctx context.Context, alert domain.Alert) (domain.Alert, error)
	// CountBySeverity tallies indicators created at or after since.
	CountBySeverity(ctx context.Context, since time.Time) (domain.SeverityCounts, error)
}

// IndicatorFilter narrows ListIndicators. Zero values match everything.
type IndicatorFilter struct {
	Severity domain.Severity
	Kind     domain.Kind
	Limit    int
}

// ThreatRepository serves read queries over stored indicators.
type ThreatRepository interface {
	ListIndicators(ctx context.Context, f IndicatorFilter) ([]domain.Indicator, error)
	GetIndicator(ctx context.Context, value string) (domain.Indicator, error)
}

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	Status   domain.AlertStatus
	Severity domain.Severity
	// Active drops resolved alerts.
	Active bool
	Limit  int
}

// AlertRepository reads alerts and moves them through their workflow.
type AlertRepository interface {
	ListAlerts(ctx context.Context, f AlertFilter) ([]domain.Alert, error)
	GetAlert(ctx context.Context, id string) (domain.Alert, error)
	// UpdateAlertStatus sets status to `to` only if it is currently `from`;
	// otherwise it returns domain.ErrInvalidTransition.
	UpdateAlertStatus(ctx context.Context, id string, from, to domain.AlertStatus) (domain.Alert, error)
}

// Store is everything a storage backend provides.
type Store interface {
	IndicatorStore
	ThreatRepository
	AlertRepository
	RunRepository
}
