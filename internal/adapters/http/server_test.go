package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"threatwatch/internal/adapters/feeds"
	"threatwatch/internal/adapters/sqlite"
	"threatwatch/internal/domain"
	"threatwatch/internal/ports"
	"threatwatch/internal/services/alerts"
	"threatwatch/internal/services/ingest"
	"threatwatch/internal/services/stats"
	"threatwatch/internal/services/threats"
	"threatwatch/internal/workers/scanrunner"
)

type fixture struct {
	srv   *httptest.Server
	store *sqlite.Store
}

func newFixture(t *testing.T, primary ports.CandidateSource) *fixture {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "http.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	pipe := ingest.New(store, ingest.WithPrimary(primary))
	runner := scanrunner.New(store, pipe, nil)
	st := stats.New(store, 0)
	s := New(runner, pipe, store, threats.New(store, st), alerts.New(store, nil), nil)

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: store}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}

func TestScanThenQuery(t *testing.T) {
	f := newFixture(t, feeds.Catalogue())

	resp, body := f.do(t, http.MethodPost, "/functions/v1/detect-threats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
	scan := decode[scanResponse](t, body)
	if !scan.Success || scan.ThreatsDetected != 10 || scan.ThreatCounts.Total() != 10 || scan.ScanID == "" {
		t.Fatalf("scan=%+v", scan)
	}
	if scan.Message != "Threat detection completed" {
		t.Fatalf("message=%q", scan.Message)
	}

	// replay stores nothing new but still reports the window
	_, body = f.do(t, http.MethodPost, "/scan", "")
	again := decode[scanResponse](t, body)
	if again.ThreatsDetected != 0 || again.ThreatCounts != scan.ThreatCounts {
		t.Fatalf("replay=%+v", again)
	}

	resp, body = f.do(t, http.MethodGet, "/scans/"+scan.ScanID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get scan status=%d", resp.StatusCode)
	}
	if run := decode[domain.Scan](t, body); run.Status != domain.ScanCompleted || run.NewIndicators != 10 {
		t.Fatalf("run=%+v", run)
	}
	_, body = f.do(t, http.MethodGet, "/scans?limit=1", "")
	if runs := decode[[]domain.Scan](t, body); len(runs) != 1 {
		t.Fatalf("runs=%d", len(runs))
	}

	_, body = f.do(t, http.MethodGet, "/threats", "")
	list := decode[[]domain.Indicator](t, body)
	if len(list) != 10 || list[0].Severity != domain.SeverityCritical || list[len(list)-1].Severity.Weight() > list[0].Severity.Weight() {
		t.Fatalf("threats=%+v", list)
	}

	_, body = f.do(t, http.MethodGet, "/threats?kind=ip", "")
	if ips := decode[[]domain.Indicator](t, body); len(ips) != 3 {
		t.Fatalf("ips=%d", len(ips))
	}

	resp, body = f.do(t, http.MethodGet, "/threats/"+url.PathEscape("185.220.101.45"), "")
	if resp.StatusCode != http.StatusOK || decode[domain.Indicator](t, body).Kind != domain.KindIP {
		t.Fatalf("lookup status=%d body=%s", resp.StatusCode, body)
	}

	_, body = f.do(t, http.MethodGet, "/stats?window=1h", "")
	st := decode[statsResponse](t, body)
	if st.Total != 10 || st.Window != "1h0m0s" {
		t.Fatalf("stats=%+v", st)
	}
}

func TestAlertWorkflowOverHTTP(t *testing.T) {
	f := newFixture(t, feeds.Catalogue())
	if resp, body := f.do(t, http.MethodPost, "/scan", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("scan status=%d body=%s", resp.StatusCode, body)
	}

	_, body := f.do(t, http.MethodGet, "/alerts?status=new", "")
	list := decode[[]domain.Alert](t, body)
	if len(list) == 0 {
		t.Fatal("no alerts raised")
	}
	for _, a := range list {
		if !a.Severity.Alertable() {
			t.Fatalf("alert for %s severity", a.Severity)
		}
	}
	id := list[0].ID

	resp, body := f.do(t, http.MethodPatch, "/alerts/"+id, `{"status":"investigating"}`)
	if resp.StatusCode != http.StatusOK || decode[domain.Alert](t, body).Status != domain.AlertInvestigating {
		t.Fatalf("patch status=%d body=%s", resp.StatusCode, body)
	}
	if resp, body := f.do(t, http.MethodPatch, "/alerts/"+id, `{"status":"resolved"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = f.do(t, http.MethodGet, "/alerts?status=active", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("active status=%d body=%s", resp.StatusCode, body)
	}
	active := decode[[]domain.Alert](t, body)
	if len(active) != len(list)-1 {
		t.Fatalf("active=%d want %d", len(active), len(list)-1)
	}
	for _, a := range active {
		if a.ID == id || a.Status == domain.AlertResolved {
			t.Fatalf("resolved alert listed as active: %+v", a)
		}
	}

	cases := []struct {
		name, id, body string
		want           int
	}{
		{"back to new", id, `{"status":"new"}`, http.StatusConflict},
		{"unknown status", id, `{"status":"closed"}`, http.StatusBadRequest},
		{"malformed body", id, `{`, http.StatusBadRequest},
		{"unknown alert", "00000000-0000-0000-0000-000000000000", `{"status":"resolved"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPatch, "/alerts/"+tc.id, tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status=%d want %d body=%s", resp.StatusCode, tc.want, body)
			}
		})
	}
}

func TestScanFailureIs500(t *testing.T) {
	f := newFixture(t, nil)
	resp, body := f.do(t, http.MethodPost, "/scan", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if e := decode[errorBody](t, body); e.Error == "" {
		t.Fatalf("body=%s", body)
	}
}

func TestPreflightAndErrors(t *testing.T) {
	f := newFixture(t, feeds.Catalogue())

	resp, body := f.do(t, http.MethodOptions, "/functions/v1/detect-threats", "")
	if resp.StatusCode != http.StatusOK || len(body) != 0 {
		t.Fatalf("preflight status=%d body=%q", resp.StatusCode, body)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); got != "authorization, x-client-info, apikey, content-type" {
		t.Fatalf("allow headers=%q", got)
	}

	for path, want := range map[string]int{
		"/threats/never-seen.example": http.StatusNotFound,
		"/threats?severity=severe":    http.StatusBadRequest,
		"/threats?limit=ten":          http.StatusBadRequest,
		"/stats?window=yesterday":     http.StatusBadRequest,
		"/scans/missing":              http.StatusNotFound,
		"/healthz":                    http.StatusOK,
	} {
		if resp, body := f.do(t, http.MethodGet, path, ""); resp.StatusCode != want {
			t.Errorf("%s status=%d want %d body=%s", path, resp.StatusCode, want, body)
		}
	}
}

func TestPreviewDoesNotStore(t *testing.T) {
	f := newFixture(t, feeds.Catalogue())
	resp, body := f.do(t, http.MethodGet, "/preview", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	p := decode[ingest.Preview](t, body)
	if len(p.Candidates) != 10 || p.Candidates[0].Severity != domain.SeverityCritical {
		t.Fatalf("preview=%+v", p)
	}
	if ok, _ := f.store.Exists(context.Background(), p.Candidates[0].Value); ok {
		t.Fatal("preview persisted a candidate")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, feeds.Catalogue())
	f.do(t, http.MethodPost, "/scan", "")
	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "threatwatch_ingest_runs_total") {
		t.Fatalf("metrics status=%d", resp.StatusCode)
	}
}
