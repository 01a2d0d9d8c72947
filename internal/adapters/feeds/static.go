package feeds

import (
	"context"
	"fmt"
	"strings"

	"threatwatch/internal/domain"
)

// Static serves a fixed candidate list.
type Static struct {
	Label      string
	Candidates []domain.Candidate
}

func (s *Static) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s *Static) Fetch(ctx context.Context) ([]domain.Candidate, error) {
	return append([]domain.Candidate(nil), s.Candidates...), nil
}

// Catalogue returns the built-in list of known-bad infrastructure.
func Catalogue() *Static {
	var out []domain.Candidate

	for _, ip := range []struct {
		addr, country, reason string
		sev                   domain.Severity
	}{
		{"185.220.101.45", "RU", "Brute force attacks", domain.SeverityCritical},
		{"103.253.145.12", "CN", "Port scanning activity", domain.SeverityHigh},
		{"198.51.100.89", "US", "DDoS attack source", domain.SeverityHigh},
	} {
		out = append(out, domain.Candidate{
			Value:            ip.addr,
			Kind:             domain.KindIP,
			Severity:         ip.sev,
			Source:           "Global Threat Intelligence",
			Description:      fmt.Sprintf("Malicious IP from %s: %s", ip.country, ip.reason),
			Tags:             []string{"malicious", "ip-reputation", strings.ToLower(ip.country)},
			ConfidenceScore:  90,
			AlertTitle:       fmt.Sprintf("Critical IP Threat Detected: %s", ip.addr),
			AlertDescription: fmt.Sprintf("A malicious IP address (%s) has been identified engaging in %s. Immediate action recommended.", ip.addr, strings.ToLower(ip.reason)),
		})
	}

	for _, d := range []struct{ name, use string }{
		{"phish-secure-login.tk", "phishing"},
		{"malware-drop-zone.ru", "malware distribution"},
		{"c2-server-panel.cc", "command and control"},
	} {
		sev := domain.SeverityHigh
		if d.use == "command and control" {
			sev = domain.SeverityCritical
		}
		out = append(out, domain.Candidate{
			Value:            d.name,
			Kind:             domain.KindDomain,
			Severity:         sev,
			Source:           "DNS Threat Feed",
			Description:      "Malicious domain used for " + d.use,
			Tags:             []string{"malicious", "domain", strings.ReplaceAll(d.use, " ", "-")},
			ConfidenceScore:  92,
			AlertTitle:       fmt.Sprintf("Malicious Domain Detected: %s", d.name),
			AlertDescription: fmt.Sprintf("Domain identified as %s infrastructure. Block access immediately.", d.use),
		})
	}

	for _, h := range []struct{ hash, family string }{
		{"d41d8cd98f00b204e9800998ecf8427e", "Ransomware.Cryptor"},
		{"e99a18c428cb38d5f260853678922e03", "Trojan.GenericKD"},
	} {
		out = append(out, domain.Candidate{
			Value:            h.hash,
			Kind:             domain.KindHash,
			Severity:         domain.SeverityCritical,
			Source:           "Malware Database",
			Description:      "Known malware hash: " + h.family,
			Tags:             []string{"malware", "hash", "critical"},
			ConfidenceScore:  95,
			AlertTitle:       "Critical Malware Hash Detected",
			AlertDescription: fmt.Sprintf("File hash %s matches %s. Quarantine immediately.", h.hash, h.family),
		})
	}

	for _, v := range []struct{ id, title string }{
		{"CVE-2024-1234", "Remote Code Execution in WebServer"},
		{"CVE-2024-5678", "SQL Injection in Database Driver"},
	} {
		out = append(out, domain.Candidate{
			Value:            v.id,
			Kind:             domain.KindCVE,
			Severity:         domain.SeverityHigh,
			Source:           "Vulnerability Database",
			Description:      v.title,
			Tags:             []string{"vulnerability", "cve", "patch-required"},
			ConfidenceScore:  100,
			AlertTitle:       "New Vulnerability: " + v.id,
			AlertDescription: v.title + ". Review affected systems and apply patches.",
		})
	}

	return &Static{Label: "catalogue", Candidates: out}
}
