// Package metrics holds the prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ecoponto"

var (
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_total",
		Help:      "Scan events by outcome.",
	}, []string{"result"})

	DisposalsRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "disposals_registered_total",
		Help:      "Disposals committed to the ledger, by unit.",
	}, []string{"unit"})

	PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "points_awarded_total",
		Help:      "Points credited to user balances.",
	})

	SubmissionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submission_failures_total",
		Help:      "Rejected or failed submissions, by reason.",
	}, []string{"reason"})

	SubmissionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "submission_duration_seconds",
		Help:      "Time spent in the ledger transaction.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Scan outcomes.
const (
	ScanAccepted = "accepted"
	ScanRejected = "rejected"
	ScanIgnored  = "ignored"
)
