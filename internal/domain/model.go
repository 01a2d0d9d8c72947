package domain

import (
	"fmt"
	"strings"
	"time"
)

// Core threat-intelligence records. Presentation concerns (icons, colours)
// live in the UI; these carry only what the store and pipeline need.

type Kind string

const (
	KindIP     Kind = "ip"
	KindDomain Kind = "domain"
	KindHash   Kind = "hash"
	KindCVE    Kind = "cve"
	KindURL    Kind = "url"
)

var AllKinds = []Kind{KindIP, KindDomain, KindHash, KindCVE, KindURL}

func (k Kind) IsValid() bool {
	for _, v := range AllKinds {
		if k == v {
			return true
		}
	}
	return false
}

// Label is the display form used in templated alert text.
func (k Kind) Label() string {
	switch k {
	case KindIP, KindCVE, KindURL:
		return strings.ToUpper(string(k))
	case KindDomain, KindHash:
		return strings.ToUpper(string(k[:1])) + string(k[1:])
	}
	return string(k)
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// AllSeverities is ordered from most to least severe.
var AllSeverities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

func (s Severity) IsValid() bool { return s.Weight() > 0 }

// Weight orders severities for ranking: critical=4, high=3, medium=2, low=1.
// Unknown severities weigh 0.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Alertable reports whether a new indicator of this severity raises an alert.
func (s Severity) Alertable() bool {
	return s == SeverityCritical || s == SeverityHigh
}

type AlertStatus string

const (
	AlertNew           AlertStatus = "new"
	AlertInvestigating AlertStatus = "investigating"
	AlertResolved      AlertStatus = "resolved"
)

func (s AlertStatus) IsValid() bool {
	switch s {
	case AlertNew, AlertInvestigating, AlertResolved:
		return true
	}
	return false
}

// CanTransition allows new->investigating, new->resolved and
// investigating->resolved. Nothing returns to new and resolved is terminal.
func (s AlertStatus) CanTransition(to AlertStatus) bool {
	switch s {
	case AlertNew:
		return to == AlertInvestigating || to == AlertResolved
	case AlertInvestigating:
		return to == AlertResolved
	}
	return false
}

// SeverityRated is anything that can be tallied or ranked by severity.
type SeverityRated interface {
	GetSeverity() Severity
}

// Indicator is a persisted IOC. Value is the uniqueness key.
type Indicator struct {
	ID              string    `json:"id"`
	Value           string    `json:"indicator"`
	Kind            Kind      `json:"type"`
	Severity        Severity  `json:"severity"`
	Source          string    `json:"source"`
	Description     string    `json:"description"`
	Tags            []string  `json:"tags"`
	ConfidenceScore int       `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
}

func (i Indicator) GetSeverity() Severity { return i.Severity }

// Candidate is an unpersisted observation from a source. AlertTitle and
// AlertDescription are used if the candidate is promoted to an alert.
type Candidate struct {
	Value            string   `json:"indicator"`
	Kind             Kind     `json:"type"`
	Severity         Severity `json:"severity"`
	Source           string   `json:"source"`
	Description      string   `json:"description"`
	Tags             []string `json:"tags,omitempty"`
	ConfidenceScore  int      `json:"confidence_score"`
	AlertTitle       string   `json:"alert_title,omitempty"`
	AlertDescription string   `json:"alert_description,omitempty"`
}

func (c Candidate) GetSeverity() Severity { return c.Severity }

// Validate checks the enumerated fields and bounds. The returned error is a
// *ValidationError.
func (c Candidate) Validate() error {
	switch {
	case strings.TrimSpace(c.Value) == "":
		return &ValidationError{Field: "indicator", Value: c.Value}
	case !c.Kind.IsValid():
		return &ValidationError{Field: "type", Value: string(c.Kind)}
	case !c.Severity.IsValid():
		return &ValidationError{Field: "severity", Value: string(c.Severity)}
	case c.ConfidenceScore < 0 || c.ConfidenceScore > 100:
		return &ValidationError{Field: "confidence_score", Value: fmt.Sprint(c.ConfidenceScore)}
	}
	return nil
}

// Indicator converts the candidate into an unsaved indicator.
func (c Candidate) Indicator() Indicator {
	return Indicator{
		Value:           c.Value,
		Kind:            c.Kind,
		Severity:        c.Severity,
		Source:          c.Source,
		Description:     c.Description,
		Tags:            uniqueTags(c.Tags),
		ConfidenceScore: c.ConfidenceScore,
	}
}

// uniqueTags drops repeated tags, keeping first-seen order. Never nil.
func uniqueTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Alert is a notification derived from a newly stored high/critical indicator.
type Alert struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
	IndicatorID string      `json:"ioc_id"`
	Status      AlertStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (a Alert) GetSeverity() Severity { return a.Severity }

// NewAlert builds the alert for a freshly stored indicator, preferring the
// text the source supplied.
func NewAlert(ind Indicator, title, description string) Alert {
	if title == "" {
		title = fmt.Sprintf("%s threat detected: %s", ind.Kind.Label(), ind.Value)
	}
	if description == "" {
		description = fmt.Sprintf("%s indicator %s reported by %s (%s).", ind.Kind, ind.Value, ind.Source, ind.Severity)
	}
	return Alert{
		Title:       title,
		Description: description,
		Severity:    ind.Severity,
		IndicatorID: ind.ID,
		Status:      AlertNew,
	}
}

// SeverityCounts always carries all four buckets.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add increments the bucket for s and reports whether s was recognised.
func (c *SeverityCounts) Add(s Severity) bool { return c.AddN(s, 1) }

// AddN adds n to the bucket for s. Unknown severities are ignored.
func (c *SeverityCounts) AddN(s Severity, n int) bool {
	switch s {
	case SeverityCritical:
		c.Critical += n
	case SeverityHigh:
		c.High += n
	case SeverityMedium:
		c.Medium += n
	case SeverityLow:
		c.Low += n
	default:
		return false
	}
	return true
}

func (c SeverityCounts) Get(s Severity) int {
	switch s {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	case SeverityLow:
		return c.Low
	}
	return 0
}

func (c SeverityCounts) Total() int { return c.Critical + c.High + c.Medium + c.Low }

// ScanStatus is the lifecycle of one ingestion run.
type ScanStatus string

const (
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// Scan records one ingestion run.
type Scan struct {
	ID            string         `json:"id"`
	Trigger       string         `json:"trigger"`
	Status        ScanStatus     `json:"status"`
	NewIndicators int            `json:"new_indicators"`
	Counts        SeverityCounts `json:"threat_counts"`
	Error         string         `json:"error,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}
