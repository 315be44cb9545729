// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomeCreated  = "created"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeInFlight = "in_flight"
)

var (
	DraftsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingenius_drafts_open",
			Help: "Number of track drafts currently held in memory.",
		})

	DraftEvictTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingenius_draft_evict_total",
			Help: "Cumulative number of drafts dropped, by reason (capacity, owner_limit, idle).",
		}, []string{"reason"})

	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingenius_submissions_total",
			Help: "Track submissions by outcome.",
		}, []string{"outcome"})

	ValidationRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingenius_validation_runs_total",
			Help: "Cumulative number of live re-validation requests.",
		})

	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingenius_store_seconds",
			Help:    "Latency of track store operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "op"})
)

func init() {
	prometheus.MustRegister(
		DraftsOpen,
		DraftEvictTotal,
		SubmissionsTotal,
		ValidationRunsTotal,
		StoreLatency,
	)
}
