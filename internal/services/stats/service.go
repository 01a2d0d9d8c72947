package stats

import (
	"context"
	"slices"
	"time"

	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
)

// DefaultWindow is the trailing range used for dashboard figures.
const DefaultWindow = 24 * time.Hour

// Aggregate partitions items by exact severity. Unrecognised severities are
// left out rather than folded into a bucket.
func Aggregate[T domain.SeverityRated](items []T) domain.SeverityCounts {
	var counts domain.SeverityCounts
	for _, it := range items {
		counts.Add(it.GetSeverity())
	}
	return counts
}

// Rank returns a copy of items ordered critical, high, medium, low. Items of
// equal severity keep their arrival order.
func Rank[T domain.SeverityRated](items []T) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		return b.GetSeverity().Weight() - a.GetSeverity().Weight()
	})
	return out
}

// Service answers windowed severity queries from the store.
type Service struct {
	store  ports.IndicatorStore
	window time.Duration
	now    func() time.Time
}

func New(store ports.IndicatorStore, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{store: store, window: window, now: time.Now}
}

// Window counts indicators created within the trailing window; zero or
// negative uses the service default.
func (s *Service) Window(ctx context.Context, window time.Duration) (domain.SeverityCounts, error) {
	if window <= 0 {
		window = s.window
	}
	return s.store.CountBySeverity(ctx, s.now().Add(-window))
}
