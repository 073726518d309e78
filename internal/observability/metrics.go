package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	vouchersPosted  *prometheus.CounterVec
	linesReversed   prometheus.Counter
	backfillDocs    *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hanbit_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hanbit_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	posted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hanbit_vouchers_posted_total",
		Help: "Vouchers posted by source document kind.",
	}, []string{"kind"})
	reversed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hanbit_voucher_lines_reversed_total",
		Help: "Ledger lines soft-deleted by reversals.",
	})
	backfill := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hanbit_backfill_documents_total",
		Help: "Backfill documents by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, posted, reversed, backfill)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		vouchersPosted:  posted,
		linesReversed:   reversed,
		backfillDocs:    backfill,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// VoucherPosted counts one posted voucher.
func (m *Metrics) VoucherPosted(kind string) {
	if m != nil {
		m.vouchersPosted.WithLabelValues(kind).Inc()
	}
}

// LinesReversed counts soft-deleted ledger lines.
func (m *Metrics) LinesReversed(n int64) {
	if m != nil && n > 0 {
		m.linesReversed.Add(float64(n))
	}
}

// BackfillDocument counts one backfill document by outcome.
func (m *Metrics) BackfillDocument(outcome string) {
	if m != nil {
		m.backfillDocs.WithLabelValues(outcome).Inc()
	}
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
