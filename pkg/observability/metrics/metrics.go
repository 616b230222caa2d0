package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhirsync_ingest_runs_total",
			Help: "Total number of ingestion runs by outcome.",
		},
		[]string{"status"}, // completed, no_results, remote_error, persistence_error
	)

	PatientsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fhirsync_patients_upserted_total",
			Help: "Total number of patient rows inserted or updated.",
		},
	)

	ObservationsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fhirsync_observations_upserted_total",
			Help: "Total number of observation rows inserted or updated.",
		},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhirsync_records_skipped_total",
			Help: "Total number of resources skipped during ingestion.",
		},
		[]string{"reason"}, // malformed, missing_identifier, orphaned
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fhirsync_remote_request_seconds",
			Help:    "Duration of requests against the remote FHIR server.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // patient_search, observation_search
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fhirsync_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request durations per method and route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
