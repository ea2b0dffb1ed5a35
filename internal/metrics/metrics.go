package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Auth metrics

	AuthFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "auth_failures_total",
		Help:      "Requests rejected by the session guard, by reason.",
	}, []string{"reason"})

	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "logins_total",
		Help:      "Login attempts, by outcome.",
	}, []string{"outcome"})

	LogoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "logouts_total",
		Help:      "Tokens invalidated through logout.",
	})

	// Pruner metrics

	TokensPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "invalidated_tokens_pruned_total",
		Help:      "Expired entries removed from invalidated token lists.",
	})

	PruneCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "marketplace",
		Name:      "prune_cycle_duration_seconds",
		Help:      "Time taken for one prune cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketplace",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		AuthFailuresTotal,
		LoginsTotal,
		LogoutsTotal,
		TokensPrunedTotal,
		PruneCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// HealthReporter is satisfied by *health.Checker.
type HealthReporter interface {
	LivenessHandler() http.HandlerFunc
	ReadinessHandler() http.HandlerFunc
}

func NewServer(addr string, health HealthReporter) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if health != nil {
		mux.HandleFunc("/healthz", health.LivenessHandler())
		mux.HandleFunc("/readyz", health.ReadinessHandler())
	}
	return &http.Server{Addr: addr, Handler: mux}
}
