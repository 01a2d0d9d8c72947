package ports

import (
	"context"

	"threatwatch/internal/domain"
)

// RunRepository records ingestion runs.
type RunRepository interface {
	StartRun(ctx context.Context, trigger string) (scanID string, err error)
	CompleteRun(ctx context.Context, scanID string, newIndicators int, counts domain.SeverityCounts) error
	FailRun(ctx context.Context, scanID string, reason string) error
	GetRun(ctx context.Context, scanID string) (domain.Scan, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Scan, error)
}
