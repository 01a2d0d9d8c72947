package threats

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"threatwatch/internal/adapters/sqlite"
	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
	"threatwatch/internal/services/stats"
)

func newService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "threats.sqlite"), sqlite.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	for _, in := range []domain.Indicator{
		{Value: "203.0.113.9", Kind: domain.KindIP, Severity: domain.SeverityLow},
		{Value: "CVE-2024-3400", Kind: domain.KindCVE, Severity: domain.SeverityCritical},
		{Value: "phish.tk", Kind: domain.KindDomain, Severity: domain.SeverityMedium},
		{Value: "198.51.100.7", Kind: domain.KindIP, Severity: domain.SeverityCritical},
	} {
		if _, err := s.InsertIndicator(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	return New(s, stats.New(s, time.Hour))
}

func TestListRanksBySeverityThenRecency(t *testing.T) {
	svc := newService(t)
	got, err := svc.List(context.Background(), ports.IndicatorFilter{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"198.51.100.7", "CVE-2024-3400", "phish.tk", "203.0.113.9"}
	if len(got) != len(want) {
		t.Fatalf("got %d indicators", len(got))
	}
	for i, v := range want {
		if got[i].Value != v {
			t.Fatalf("position %d = %s, want %s", i, got[i].Value, v)
		}
	}
}

func TestListValidatesFilter(t *testing.T) {
	svc := newService(t)
	if _, err := svc.List(context.Background(), ports.IndicatorFilter{Kind: "email"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err=%v", err)
	}
	ips, err := svc.List(context.Background(), ports.IndicatorFilter{Kind: domain.KindIP})
	if err != nil {
		t.Fatal(err)
	}
	if len(ips) != 2 || ips[0].Severity != domain.SeverityCritical {
		t.Fatalf("ips=%+v", ips)
	}
}

func TestLookup(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	got, err := svc.Lookup(ctx, "  phish.tk ")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != domain.KindDomain {
		t.Fatalf("got=%+v", got)
	}
	if _, err := svc.Lookup(ctx, "PHISH.TK"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("case-folded lookup err=%v", err)
	}
	if _, err := svc.Lookup(ctx, " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("blank lookup err=%v", err)
	}
}
