package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/rain-route-planner/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. A route check fans out to many provider calls, so expect seconds.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Outbound provider calls by provider and HTTP outcome.
	ProviderCallsTotal *prometheus.CounterVec

	// Outbound provider latency. Watch for: p95 approaching the per-call timeout.
	ProviderDuration *prometheus.HistogramVec

	// Provider errors by stable category (see client.CategorizeError).
	ProviderErrorsTotal *prometheus.CounterVec

	// Fallback chain attempts: outcome is success, error or skipped (no credential).
	FallbackAttemptsTotal *prometheus.CounterVec

	// Chains where every strategy failed. Watch for: weather chains with mock disabled.
	ChainExhaustedTotal *prometheus.CounterVec

	// Place cache lookups by result (hit, miss, error).
	PlaceCacheLookupsTotal *prometheus.CounterVec

	// Waypoints produced per route check, source and destination included.
	WaypointsPerRoute prometheus.Histogram

	// Alerts emitted by severity. A rising "unknown" share means weather lookups are failing.
	AlertsTotal *prometheus.CounterVec

	// Route checks by outcome (success, invalid, no_route, error).
	RouteChecksTotal *prometheus.CounterVec

	// Alert notifications published by status.
	AlertPublishTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per provider: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per provider.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerCallsTotal",
			Help: "Total number of outbound provider calls",
		},
		[]string{"provider", "status"},
	)
	ProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerDurationSeconds",
			Help:    "Outbound provider latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"provider", "status"},
	)
	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerErrorsTotal",
			Help: "Outbound provider errors by category",
		},
		[]string{"provider", "category"},
	)
	FallbackAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbackAttemptsTotal",
			Help: "Strategy attempts per capability chain",
		},
		[]string{"capability", "provider", "outcome"},
	)
	ChainExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainExhaustedTotal",
			Help: "Capability chains where every strategy failed",
		},
		[]string{"capability"},
	)
	PlaceCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placeCacheLookupsTotal",
			Help: "Reverse geocode cache lookups by result",
		},
		[]string{"result"},
	)
	WaypointsPerRoute = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "waypointsPerRoute",
			Help:    "Waypoints per route check, source and destination included",
			Buckets: prometheus.ExponentialBuckets(2, 2, 10),
		},
	)
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertsTotal",
			Help: "Weather alerts emitted by severity",
		},
		[]string{"severity"},
	)
	RouteChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeChecksTotal",
			Help: "Route checks by outcome",
		},
		[]string{"outcome"},
	)
	AlertPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertPublishTotal",
			Help: "Alert notifications published by status",
		},
		[]string{"status"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per provider (0 closed, 1 open, 2 half-open)",
		},
		[]string{"provider"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions per provider",
		},
		[]string{"provider", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ProviderCallsTotal, ProviderDuration, ProviderErrorsTotal,
		FallbackAttemptsTotal, ChainExhaustedTotal,
		PlaceCacheLookupsTotal,
		WaypointsPerRoute, AlertsTotal, RouteChecksTotal, AlertPublishTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with the traffic window.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window; load/capacity planning",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window; are we rejecting requests",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
// stateValue is the numeric state (0 closed, 1 open, 2 half-open).
func RecordCircuitBreakerTransition(provider, from, to string, stateValue int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(provider, from, to).Inc()
	CircuitBreakerState.WithLabelValues(provider).Set(float64(stateValue))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
