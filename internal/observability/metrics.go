package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	workTransitionsTotal *prometheus.CounterVec
	htrDispatchTotal     *prometheus.CounterVec
	htrResultsTotal      *prometheus.CounterVec
	orphanDeletionsTotal *prometheus.CounterVec
	workListCacheLookups *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors of the grading API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		workTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "work_status_transitions_total",
			Help: "Requested work status transitions by outcome.",
		}, []string{"from", "to", "result"})

		htrDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "htr_dispatch_total",
			Help: "Handwriting recognition requests by outcome.",
		}, []string{"result"})

		htrResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "htr_results_total",
			Help: "Handwriting recognition results consumed by outcome.",
		}, []string{"result"})

		orphanDeletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storage_orphan_deletions_total",
			Help: "Deletions of storage objects no longer referenced by a work.",
		}, []string{"result"})

		workListCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "work_list_cache_lookups_total",
			Help: "Work list cache lookups by outcome.",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			workTransitionsTotal,
			htrDispatchTotal,
			htrResultsTotal,
			orphanDeletionsTotal,
			workListCacheLookups,
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

// WorkTransitions counts status transitions labelled from, to and result.
func WorkTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return workTransitionsTotal
}

// HTRDispatch counts recognition dispatch attempts.
func HTRDispatch() *prometheus.CounterVec {
	RegisterMetrics()
	return htrDispatchTotal
}

// HTRResults counts consumed recognition results.
func HTRResults() *prometheus.CounterVec {
	RegisterMetrics()
	return htrResultsTotal
}

// OrphanDeletions counts best-effort storage deletions.
func OrphanDeletions() *prometheus.CounterVec {
	RegisterMetrics()
	return orphanDeletionsTotal
}

// WorkListCache counts cache hits and misses.
func WorkListCache() *prometheus.CounterVec {
	RegisterMetrics()
	return workListCacheLookups
}
