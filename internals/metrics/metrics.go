package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vivienda"

// Submission results
const (
	ResultCreated     = "created"
	ResultRejected    = "rejected"
	ResultSpam        = "spam"
	ResultRateLimited = "rate_limited"
	ResultFailed      = "failed"
)

// Metrics holds the Prometheus collectors of one process. Each instance owns
// its registry, so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	DBConnPoolStats  *prometheus.GaugeVec

	Submissions   *prometheus.CounterVec
	Compensations prometheus.Counter
	SchemaEdits   *prometheus.CounterVec
	Uploads       *prometheus.CounterVec
	OrphansSwept  prometheus.Counter
}

func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
		DBConnPoolStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "db_connection_pool",
			Help:      "Database connection pool statistics",
		}, []string{"stat"}),
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "submissions_total",
			Help:      "Public submissions by result",
		}, []string{"result"}),
		Compensations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "submission_compensations_total",
			Help:      "Submissions rolled back after the applicant and assessment were created",
		}),
		SchemaEdits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "schema_edits_total",
			Help:      "Form schema edits by operation",
		}, []string{"op"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "uploads_total",
			Help:      "Uploaded answer files by result",
		}, []string{"result"}),
		OrphansSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "orphan_applicants_swept_total",
			Help:      "Applicants removed by the orphan sweeper",
		}),
	}
}

// The helpers below accept a nil receiver so services can run without metrics.

func (m *Metrics) SubmissionResult(result string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) Compensated() {
	if m == nil {
		return
	}
	m.Compensations.Inc()
}

func (m *Metrics) SchemaEdit(op string) {
	if m == nil {
		return
	}
	m.SchemaEdits.WithLabelValues(op).Inc()
}

func (m *Metrics) Upload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OrphansSwept.Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// RecordDBPoolStats records database connection pool statistics
func (m *Metrics) RecordDBPoolStats(open, inUse, idle int, waitCount int64, waitDuration time.Duration) {
	if m == nil {
		return
	}
	m.DBConnPoolStats.WithLabelValues("open").Set(float64(open))
	m.DBConnPoolStats.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(idle))
	m.DBConnPoolStats.WithLabelValues("wait_count").Set(float64(waitCount))
	m.DBConnPoolStats.WithLabelValues("wait_duration_ms").Set(float64(waitDuration.Milliseconds()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
