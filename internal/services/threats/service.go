package threats

import (
	"context"
	"strings"
	"time"

	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
	"threatwatch/internal/services/stats"
)

// Service is the read side the dashboard queries: ranked indicator lists,
// single-indicator lookup and windowed counts.
type Service struct {
	repo  ports.ThreatRepository
	stats *stats.Service
}

func New(repo ports.ThreatRepository, st *stats.Service) *Service {
	return &Service{repo: repo, stats: st}
}

// List returns the most recent matching indicators ranked critical first.
// Ties keep recency order.
func (s *Service) List(ctx context.Context, f ports.IndicatorFilter) ([]domain.Indicator, error) {
	if f.Severity != "" && !f.Severity.IsValid() {
		return nil, &domain.ValidationError{Field: "severity", Value: string(f.Severity)}
	}
	if f.Kind != "" && !f.Kind.IsValid() {
		return nil, &domain.ValidationError{Field: "type", Value: string(f.Kind)}
	}
	items, err := s.repo.ListIndicators(ctx, f)
	if err != nil {
		return nil, err
	}
	return stats.Rank(items), nil
}

// Lookup finds a stored indicator by its exact value. Surrounding whitespace
// from a search box is ignored; case is not.
func (s *Service) Lookup(ctx context.Context, value string) (domain.Indicator, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Indicator{}, &domain.ValidationError{Field: "indicator", Value: value}
	}
	return s.repo.GetIndicator(ctx, value)
}

// Counts tallies indicators over the trailing window; zero uses the default.
func (s *Service) Counts(ctx context.Context, window time.Duration) (domain.SeverityCounts, error) {
	return s.stats.Window(ctx, window)
}
