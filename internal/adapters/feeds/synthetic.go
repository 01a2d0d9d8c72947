package feeds

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"threatwatch/internal/domain"
)

var (
	syntheticKinds   = []domain.Kind{domain.KindIP, domain.KindDomain, domain.KindHash, domain.KindCVE}
	syntheticSources = []string{"AbuseIPDB", "URLhaus", "MalwareBazaar", "PhishTank", "AlienVault"}
	syntheticDomains = []string{"malicious.com", "phish-login.net", "secure-update-fake.org", "bank-verify-account.xyz"}
)

// Synthetic generates demonstration candidates when no live feed is usable.
// It never fails.
type Synthetic struct {
	Count int

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewSynthetic(count int, seed uint64) *Synthetic {
	if count <= 0 {
		count = 15
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Synthetic{Count: count, rng: rand.New(rand.NewPCG(seed, seed>>1|1)), now: time.Now}
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) Fetch(ctx context.Context) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Candidate, 0, s.Count)
	for i := 0; i < s.Count; i++ {
		out = append(out, s.next())
	}
	return out, nil
}

func (s *Synthetic) next() domain.Candidate {
	kind := syntheticKinds[s.rng.IntN(len(syntheticKinds))]
	c := domain.Candidate{
		Kind:            kind,
		Severity:        domain.AllSeverities[s.rng.IntN(len(domain.AllSeverities))],
		Source:          syntheticSources[s.rng.IntN(len(syntheticSources))],
		ConfidenceScore: 60 + s.rng.IntN(40),
		Tags:            []string{"synthetic", string(kind)},
	}
	switch kind {
	case domain.KindIP:
		c.Value = fmt.Sprintf("%d.%d.%d.%d", s.rng.IntN(255), s.rng.IntN(255), s.rng.IntN(255), s.rng.IntN(255))
		c.Description = "Suspicious network activity detected"
	case domain.KindDomain:
		c.Value = syntheticDomains[s.rng.IntN(len(syntheticDomains))]
		c.Description = "Phishing site detected"
	case domain.KindHash:
		var b strings.Builder
		for j := 0; j < 32; j++ {
			fmt.Fprintf(&b, "%x", s.rng.IntN(16))
		}
		c.Value = b.String()
		c.Description = "Known malware signature"
	case domain.KindCVE:
		c.Value = fmt.Sprintf("CVE-%d-%d", s.now().Year(), 1000+s.rng.IntN(9000))
		c.Description = "Critical vulnerability exploit attempt"
	}
	return c
}
