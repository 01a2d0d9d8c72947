package alerts

import (
	"context"
	"fmt"
	"log/slog"

	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
)

type Service struct {
	repo ports.AlertRepository
	log  *slog.Logger
}

func New(repo ports.AlertRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

func (s *Service) List(ctx context.Context, f ports.AlertFilter) ([]domain.Alert, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Value: string(f.Status)}
	}
	if f.Severity != "" && !f.Severity.IsValid() {
		return nil, &domain.ValidationError{Field: "severity", Value: string(f.Severity)}
	}
	return s.repo.ListAlerts(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Alert, error) {
	return s.repo.GetAlert(ctx, id)
}

// Transition moves an alert along new -> investigating -> resolved. The
// update is conditional on the status read here, so a concurrent change
// surfaces as domain.ErrInvalidTransition rather than being overwritten.
func (s *Service) Transition(ctx context.Context, id string, to domain.AlertStatus) (domain.Alert, error) {
	if !to.IsValid() {
		return domain.Alert{}, &domain.ValidationError{Field: "status", Value: string(to)}
	}
	cur, err := s.repo.GetAlert(ctx, id)
	if err != nil {
		return domain.Alert{}, err
	}
	if !cur.Status.CanTransition(to) {
		return domain.Alert{}, fmt.Errorf("alert %s: %s -> %s: %w", id, cur.Status, to, domain.ErrInvalidTransition)
	}
	updated, err := s.repo.UpdateAlertStatus(ctx, id, cur.Status, to)
	if err != nil {
		return domain.Alert{}, err
	}
	s.log.Info("alert status changed", "alert", id, "from", cur.Status, "to", to)
	return updated, nil
}
