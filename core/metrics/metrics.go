package metrics

import (
	"time"

	"ftc-sync/core/reconcile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ftc_sync"

var (
	// Reconciliation runs
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs by entity type and status",
		},
		[]string{"entity", "status"}, // "ok", "aborted", "cancelled"
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"entity"},
	)

	EntityOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_outcomes_total",
			Help:      "Entities processed by reconciliation runs, by outcome",
		},
		[]string{"entity", "outcome"}, // "created", "updated", "unchanged", "skipped", "failed", "duplicate"
	)

	OmittedChildren = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "omitted_children_total",
			Help:      "Child rows dropped because their reference could not be resolved",
		},
		[]string{"entity"},
	)

	LastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last reconciliation run finished",
		},
		[]string{"entity"},
	)

	// Upstream API
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests issued to the upstream API",
		},
		[]string{"endpoint", "result"}, // "success", "failure", "rejected"
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of upstream API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// ObserveSummary records the outcome of a finished run.
func ObserveSummary(s *reconcile.Summary, err error) {
	if s == nil {
		return
	}

	RunsTotal.WithLabelValues(s.Entity, RunStatus(err)).Inc()
	if !s.FinishedAt.IsZero() {
		RunDuration.WithLabelValues(s.Entity).Observe(s.Duration().Seconds())
		LastRunTimestamp.WithLabelValues(s.Entity).Set(float64(s.FinishedAt.Unix()))
	}

	// Dry runs only plan writes.
	if !s.DryRun {
		EntityOutcomes.WithLabelValues(s.Entity, "created").Add(float64(s.Created))
		EntityOutcomes.WithLabelValues(s.Entity, "updated").Add(float64(s.Updated))
	}
	EntityOutcomes.WithLabelValues(s.Entity, "unchanged").Add(float64(s.Unchanged))
	EntityOutcomes.WithLabelValues(s.Entity, "skipped").Add(float64(s.Skipped))
	EntityOutcomes.WithLabelValues(s.Entity, "failed").Add(float64(s.Failed))
	EntityOutcomes.WithLabelValues(s.Entity, "duplicate").Add(float64(s.Duplicates))
	OmittedChildren.WithLabelValues(s.Entity).Add(float64(s.OmittedChildren))
}

// RunStatus maps a Run error to the runs_total status label.
func RunStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isCancelled(err):
		return "cancelled"
	default:
		return "aborted"
	}
}

// ObserveUpstream records one upstream request.
func ObserveUpstream(endpoint, result string, elapsed time.Duration) {
	UpstreamRequests.WithLabelValues(endpoint, result).Inc()
	UpstreamLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}
