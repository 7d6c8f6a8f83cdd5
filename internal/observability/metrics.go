package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pitabwire/tripflow/model"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	probeDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	storeDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1}
	bodySizeBuckets      = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Workflow metrics
	DerivationsTotal   *prometheus.CounterVec
	BookingReadyTotal  prometheus.Counter
	ActionResultsTotal *prometheus.CounterVec
	IdempotentReplays  prometheus.Counter

	// Link health metrics
	LinkProbesTotal   *prometheus.CounterVec
	LinkProbeDuration prometheus.Histogram

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreConflictsTotal    prometheus.Counter
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripflow_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripflow_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripflow_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Workflow
		DerivationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripflow_workflow_derivations_total",
			Help: "Total number of workflow derivations.",
		}, []string{"trigger", "stage"}),
		BookingReadyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripflow_workflow_booking_ready_total",
			Help: "Total number of derivations that ended booking ready.",
		}),
		ActionResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripflow_workflow_action_results_total",
			Help: "Total number of applied workflow actions by outcome.",
		}, []string{"action_type", "status"}),
		IdempotentReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripflow_workflow_idempotent_replays_total",
			Help: "Total number of action batches served from the idempotency store.",
		}),

		// Link health
		LinkProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripflow_link_probes_total",
			Help: "Total number of booking link probes by classification.",
		}, []string{"status"}),
		LinkProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripflow_link_probe_duration_seconds",
			Help:    "Booking link probe duration in seconds.",
			Buckets: probeDurationBuckets,
		}),

		// Store
		StoreOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripflow_store_operations_total",
			Help: "Total number of trip store operations.",
		}, []string{"operation", "status"}),
		StoreOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripflow_store_operation_duration_seconds",
			Help:    "Trip store operation duration in seconds.",
			Buckets: storeDurationBuckets,
		}, []string{"operation"}),
		StoreConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripflow_store_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Workflow
		m.DerivationsTotal,
		m.BookingReadyTotal,
		m.ActionResultsTotal,
		m.IdempotentReplays,
		// Link health
		m.LinkProbesTotal,
		m.LinkProbeDuration,
		// Store
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		m.StoreConflictsTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordDerivation records one workflow derivation.
func (m *Metrics) RecordDerivation(trigger, stage string, bookingReady bool) {
	m.DerivationsTotal.WithLabelValues(trigger, stage).Inc()
	if bookingReady {
		m.BookingReadyTotal.Inc()
	}
}

// RecordActionResult records the outcome of one applied action.
func (m *Metrics) RecordActionResult(actionType, status string) {
	m.ActionResultsTotal.WithLabelValues(actionType, status).Inc()
}

// RecordIdempotentReplay records an action batch answered from the
// idempotency store.
func (m *Metrics) RecordIdempotentReplay() {
	m.IdempotentReplays.Inc()
}

// RecordLinkProbe records one booking link probe.
func (m *Metrics) RecordLinkProbe(status string, duration time.Duration) {
	m.LinkProbesTotal.WithLabelValues(status).Inc()
	m.LinkProbeDuration.Observe(duration.Seconds())
}

// RecordStoreOperation records a trip store call. Conflicts are counted
// separately from other failures.
func (m *Metrics) RecordStoreOperation(operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
		if envErr, ok := model.AsEnvelope(err); ok {
			switch envErr.Code {
			case model.ErrConflict:
				status = "conflict"
				m.StoreConflictsTotal.Inc()
			case model.ErrNotFound, model.ErrTripNotFound:
				status = "not_found"
			}
		}
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
