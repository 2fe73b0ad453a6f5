package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	gatewayCallsTotal     *prometheus.CounterVec
	gatewayFallbacksTotal *prometheus.CounterVec
	gatewayBreakerState   *prometheus.GaugeVec

	lifecycleTransitionsTotal *prometheus.CounterVec
	submissionAdmissionsTotal *prometheus.CounterVec
	mcqGradingsTotal          *prometheus.CounterVec
	cacheOperationsTotal      *prometheus.CounterVec
	notificationsTotal        *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assignment_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gatewayCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Remote calls made through the gateway by dependency, operation and outcome.",
		}, []string{"dependency", "operation", "outcome"})

		gatewayFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_fallbacks_total",
			Help: "Display lookups answered with a synthesized placeholder.",
		}, []string{"dependency", "operation"})

		gatewayBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_breaker_state",
			Help: "Circuit breaker state per dependency (0 closed, 1 half-open, 2 open).",
		}, []string{"dependency"})

		lifecycleTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_transitions_total",
			Help: "Lifecycle transition attempts by transition and outcome.",
		}, []string{"transition", "outcome"})

		submissionAdmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_admissions_total",
			Help: "Submission admission decisions by kind and outcome.",
		}, []string{"kind", "outcome"})

		mcqGradingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcq_gradings_total",
			Help: "MCQ attempts graded, by pass result.",
		}, []string{"passed"})

		cacheOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_cache_operations_total",
			Help: "Student assignment cache operations by operation and result.",
		}, []string{"operation", "result"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notification events handed to a transport, by transport and outcome.",
		}, []string{"transport", "outcome"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			gatewayCallsTotal, gatewayFallbacksTotal, gatewayBreakerState,
			lifecycleTransitionsTotal, submissionAdmissionsTotal, mcqGradingsTotal,
			cacheOperationsTotal, notificationsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GatewayCalls exposes the remote call counter.
func GatewayCalls() *prometheus.CounterVec {
	RegisterMetrics()
	return gatewayCallsTotal
}

// GatewayFallbacks exposes the placeholder fallback counter.
func GatewayFallbacks() *prometheus.CounterVec {
	RegisterMetrics()
	return gatewayFallbacksTotal
}

// GatewayBreakerState exposes the breaker state gauge.
func GatewayBreakerState() *prometheus.GaugeVec {
	RegisterMetrics()
	return gatewayBreakerState
}

// LifecycleTransitions exposes the lifecycle transition counter.
func LifecycleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleTransitionsTotal
}

// SubmissionAdmissions exposes the admission decision counter.
func SubmissionAdmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionAdmissionsTotal
}

// McqGradings exposes the MCQ grading counter.
func McqGradings() *prometheus.CounterVec {
	RegisterMetrics()
	return mcqGradingsTotal
}

// CacheOperations exposes the cache operation counter.
func CacheOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return cacheOperationsTotal
}

// NotificationsPublished exposes the notification counter.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}
