package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CandidatesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatwatch_ingest_candidates_total",
			Help: "Candidates processed by outcome (inserted, duplicate, rejected)",
		},
		[]string{"outcome"},
	)

	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatwatch_ingest_runs_total",
			Help: "Ingestion runs by result",
		},
		[]string{"result"},
	)

	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatwatch_alerts_created_total",
			Help: "Alerts persisted by severity",
		},
		[]string{"severity"},
	)

	AlertFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatwatch_alert_failures_total",
			Help: "Alerts that could not be persisted or published",
		},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatwatch_source_failures_total",
			Help: "Candidate source fetch failures",
		},
		[]string{"source"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "threatwatch_ingest_duration_seconds",
			Help:    "Wall time of one ingestion run",
			Buckets: prometheus.DefBuckets,
		},
	)
)
