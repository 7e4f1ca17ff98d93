package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "underwriting_applications_started_total",
			Help: "Applications accepted by the API or intake and handed to the orchestrator",
		},
	)

	ActivityOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriting_activity_outcomes_total",
			Help: "Activity attempts by activity and outcome kind",
		},
		[]string{"activity", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "underwriting_provider_request_duration_seconds",
			Help:    "Latency of outbound provider requests",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)

	ProviderCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriting_provider_cache_hits_total",
			Help: "Provider fetches served from the result cache",
		},
		[]string{"provider"},
	)

	ReviewsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriting_reviews_submitted_total",
			Help: "Human review outcomes accepted by the review gate",
		},
		[]string{"action"},
	)

	Terminal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "underwriting_applications_terminal_total",
			Help: "Applications reaching a terminal state",
		},
		[]string{"state", "decision"},
	)
)

func ObserveProvider(provider, status string, d time.Duration) {
	ProviderLatency.WithLabelValues(provider, status).Observe(d.Seconds())
}

func ActivityOutcome(activity string, err error, kind string) {
	if err == nil {
		ActivityOutcomes.WithLabelValues(activity, "ok").Inc()
		return
	}
	if kind == "" {
		kind = "error"
	}
	ActivityOutcomes.WithLabelValues(activity, kind).Inc()
}
