package alerts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"threatwatch/internal/adapters/sqlite"
	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
)

func seed(t *testing.T) (*sqlite.Store, domain.Alert) {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "alerts.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ind, err := s.InsertIndicator(ctx, domain.Indicator{Value: "malware-c2.xyz", Kind: domain.KindDomain, Severity: domain.SeverityCritical, Source: "Global Threat Intelligence"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := s.InsertAlert(ctx, domain.NewAlert(ind, "", ""))
	if err != nil {
		t.Fatal(err)
	}
	return s, a
}

func TestTransitionWorkflow(t *testing.T) {
	ctx := context.Background()
	store, a := seed(t)
	svc := New(store, nil)

	got, err := svc.Transition(ctx, a.ID, domain.AlertInvestigating)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.AlertInvestigating {
		t.Fatalf("status=%s", got.Status)
	}
	if _, err := svc.Transition(ctx, a.ID, domain.AlertNew); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("back to new err=%v", err)
	}
	if _, err := svc.Transition(ctx, a.ID, domain.AlertResolved); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transition(ctx, a.ID, domain.AlertResolved); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("resolved is terminal, err=%v", err)
	}
}

func TestTransitionRejectsInput(t *testing.T) {
	ctx := context.Background()
	store, a := seed(t)
	svc := New(store, nil)

	if _, err := svc.Transition(ctx, a.ID, "closed"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad status err=%v", err)
	}
	if _, err := svc.Transition(ctx, "00000000-0000-0000-0000-000000000000", domain.AlertResolved); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown alert err=%v", err)
	}
}

func TestListValidatesFilter(t *testing.T) {
	ctx := context.Background()
	store, a := seed(t)
	svc := New(store, nil)

	if _, err := svc.List(ctx, ports.AlertFilter{Status: "open"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err=%v", err)
	}
	got, err := svc.List(ctx, ports.AlertFilter{Severity: domain.SeverityCritical})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != a.ID || got[0].Title != "Domain threat detected: malware-c2.xyz" {
		t.Fatalf("alerts=%+v", got)
	}
}
