// Package metrics provides Prometheus metrics for the urltree server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urltree_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "urltree_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Source fetch metrics
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urltree_source_fetch_total",
			Help: "Total fetches of the upstream URL list",
		},
		[]string{"status"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "urltree_source_fetch_duration_seconds",
			Help:    "Upstream fetch duration in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Tree metrics
	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "urltree_build_duration_seconds",
			Help:    "Time to build and format the host trees",
			Buckets: prometheus.DefBuckets,
		},
	)

	treeSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "urltree_tree_size",
			Help: "Size of the last built tree",
		},
		[]string{"kind"},
	)

	nameConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urltree_name_conflicts_total",
			Help: "Names used both as a file and a directory",
		},
	)

	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urltree_cache_lookups_total",
			Help: "Snapshot cache lookups",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFetch records an upstream fetch.
func RecordFetch(duration time.Duration, success bool) {
	fetchDuration.Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	fetchTotal.WithLabelValues(status).Inc()
}

// RecordBuild records a tree build and the resulting tree size.
func RecordBuild(duration time.Duration, hosts, dirs, files, conflicts int) {
	buildDuration.Observe(duration.Seconds())
	treeSize.WithLabelValues("hosts").Set(float64(hosts))
	treeSize.WithLabelValues("directories").Set(float64(dirs))
	treeSize.WithLabelValues("files").Set(float64(files))
	nameConflictsTotal.Add(float64(conflicts))
}

// RecordCacheLookup records a snapshot cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
// route maps a request to a low-cardinality path label.
func Middleware(route func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, route(r), rw.statusCode, time.Since(start))
	})
}
