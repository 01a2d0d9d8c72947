package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"threatwatch/internal/domain"
)

const DefaultURLhausBase = "https://urlhaus-api.abuse.ch/v1"

// URLhaus pulls the recent-URLs listing from abuse.ch.
type URLhaus struct {
	BaseURL string
	Limit   int
	AuthKey string
	Client  *http.Client
}

func NewURLhaus(baseURL string, limit int, authKey string, timeout time.Duration) *URLhaus {
	if baseURL == "" {
		baseURL = DefaultURLhausBase
	}
	if limit <= 0 {
		limit = 10
	}
	return &URLhaus{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Limit:   limit,
		AuthKey: authKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (u *URLhaus) Name() string { return "URLhaus" }

type urlhausResponse struct {
	QueryStatus string          `json:"query_status"`
	URLs        []urlhausRecord `json:"urls"`
}

type urlhausRecord struct {
	URL       string   `json:"url"`
	Host      string   `json:"host"`
	Threat    string   `json:"threat"`
	URLStatus string   `json:"url_status"`
	Tags      []string `json:"tags"`
	Reporter  string   `json:"reporter"`
}

// Fetch makes a single request. Any transport, status or decode failure is
// reported as domain.ErrSourceUnavailable.
func (u *URLhaus) Fetch(ctx context.Context) ([]domain.Candidate, error) {
	endpoint := fmt.Sprintf("%s/urls/recent/limit/%d/", u.BaseURL, u.Limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if u.AuthKey != "" {
		req.Header.Set("Auth-Key", u.AuthKey)
	}

	resp, err := u.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch urlhaus: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: urlhaus status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}

	var body urlhausResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: parse urlhaus json: %v", domain.ErrSourceUnavailable, err)
	}
	switch body.QueryStatus {
	case "ok", "no_results", "":
	default:
		return nil, fmt.Errorf("%w: urlhaus query_status %q", domain.ErrSourceUnavailable, body.QueryStatus)
	}

	out := make([]domain.Candidate, 0, len(body.URLs))
	for _, rec := range body.URLs {
		if strings.TrimSpace(rec.URL) == "" {
			continue
		}
		out = append(out, mapURLhaus(rec))
	}
	return out, nil
}

func mapURLhaus(rec urlhausRecord) domain.Candidate {
	sev := domain.SeverityHigh
	if rec.Threat == "malware_download" {
		sev = domain.SeverityCritical
	}
	tags := append([]string{}, rec.Tags...)
	if host := registrableHost(rec); host != "" {
		tags = append(tags, "host:"+host)
	}
	desc := "Malware URL detected"
	if len(rec.Tags) > 0 {
		desc += ": " + strings.Join(rec.Tags, ", ")
	}
	return domain.Candidate{
		Value:            rec.URL,
		Kind:             domain.KindURL,
		Severity:         sev,
		Source:           "URLhaus",
		Description:      desc,
		Tags:             tags,
		ConfidenceScore:  90,
		AlertTitle:       fmt.Sprintf("Malicious URL Detected: %s", rec.URL),
		AlertDescription: fmt.Sprintf("URL flagged by URLhaus as %s. Block access and review affected hosts.", threatLabel(rec.Threat)),
	}
}

// registrableHost reduces the record's host to its eTLD+1, leaving IP
// literals untouched.
func registrableHost(rec urlhausRecord) string {
	host := rec.Host
	if host == "" {
		if u, err := url.Parse(rec.URL); err == nil {
			host = u.Hostname()
		}
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}

func threatLabel(threat string) string {
	if threat == "" {
		return "malicious"
	}
	return strings.ReplaceAll(threat, "_", " ")
}
