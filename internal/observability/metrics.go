package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce            sync.Once
	apiRequestsTotal        *prometheus.CounterVec
	apiLatencySeconds       *prometheus.HistogramVec
	apiErrorsTotal          *prometheus.CounterVec
	approvalTransitions     *prometheus.CounterVec
	cascadeResetsTotal      *prometheus.CounterVec
	auditWritesTotal        *prometheus.CounterVec
	auditBestEffortFailures *prometheus.CounterVec
	auditCacheRequests      *prometheus.CounterVec
	auditStreamClients      prometheus.Gauge
	revisionUploadsRejected *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors of the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docflow_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		approvalTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_approval_transitions_total",
			Help: "Approval state operations by artifact kind, role, operation and outcome.",
		}, []string{"kind", "role", "operation", "outcome"})

		cascadeResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_cascade_resets_total",
			Help: "Approvals revoked because artifact content changed.",
		}, []string{"kind"})

		auditWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_audit_writes_total",
			Help: "Activity log writes by action and result.",
		}, []string{"action", "result"})

		auditBestEffortFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_audit_best_effort_failures_total",
			Help: "Best-effort activity log writes that failed without aborting the parent operation.",
		}, []string{"action"})

		auditCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_audit_cache_requests_total",
			Help: "Activity log listing cache lookups by outcome.",
		}, []string{"outcome"})

		auditStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docflow_audit_stream_clients",
			Help: "Connected activity stream websocket clients.",
		})

		revisionUploadsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docflow_revision_uploads_rejected_total",
			Help: "Document revision uploads rejected by reason.",
		}, []string{"reason"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			approvalTransitions,
			cascadeResetsTotal,
			auditWritesTotal,
			auditBestEffortFailures,
			auditCacheRequests,
			auditStreamClients,
			revisionUploadsRejected,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ApprovalTransitions exposes the approval operation counter.
func ApprovalTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return approvalTransitions
}

// CascadeResets exposes the cascade invalidation counter.
func CascadeResets() *prometheus.CounterVec {
	RegisterMetrics()
	return cascadeResetsTotal
}

// AuditWrites exposes the activity log write counter.
func AuditWrites() *prometheus.CounterVec {
	RegisterMetrics()
	return auditWritesTotal
}

// AuditBestEffortFailures exposes the counter of tolerated audit failures.
func AuditBestEffortFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return auditBestEffortFailures
}

// AuditCacheRequests exposes the audit listing cache counter.
func AuditCacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return auditCacheRequests
}

// AuditStreamClients exposes the connected stream client gauge.
func AuditStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return auditStreamClients
}

// RevisionUploadsRejected exposes the rejected upload counter.
func RevisionUploadsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return revisionUploadsRejected
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
