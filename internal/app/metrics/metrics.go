package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "spatial_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spatial_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spatial_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	projectOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spatial_layer",
			Subsystem: "projects",
			Name:      "operations_total",
			Help:      "Total number of project store operations.",
		},
		[]string{"operation", "status"},
	)

	projectCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "spatial_layer",
			Subsystem: "projects",
			Name:      "stored_total",
			Help:      "Number of projects currently stored.",
		},
	)

	geometryCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "spatial_layer",
			Subsystem: "projects",
			Name:      "geometries_total",
			Help:      "Number of area-of-interest geometries currently stored.",
		},
	)

	totalArea = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "spatial_layer",
			Subsystem: "projects",
			Name:      "aoi_area_square_meters",
			Help:      "Total geodesic area covered by stored areas of interest.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		projectOps,
		projectCount,
		geometryCount,
		totalArea,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordProjectOp counts a project store operation with its outcome.
func RecordProjectOp(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	projectOps.WithLabelValues(operation, status).Inc()
}

// SetSpatialStats publishes the latest spatial aggregates.
func SetSpatialStats(projects, geometries int64, areaSqM float64) {
	projectCount.Set(float64(projects))
	geometryCount.Set(float64(geometries))
	totalArea.Set(areaSqM)
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := routeLabel(r)
		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())
	})
}

// routeLabel prefers the mux route template over the raw path so dynamic
// segments do not mint unbounded label series.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}
	return r.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}
