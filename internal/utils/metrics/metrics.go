package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics. It satisfies the metrics hooks of
// the checkout, payment and task packages.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Checkout metrics
	SessionsCreatedTotal *prometheus.CounterVec
	SessionsExpiredTotal prometheus.Counter

	// Payment metrics
	PaymentsSubmittedTotal *prometheus.CounterVec
	SettlementsTotal       *prometheus.CounterVec
	RefundsTotal           *prometheus.CounterVec

	// Scheduler metrics
	JobsTotal   *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance registered with reg. A nil reg uses the
// default Prometheus registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "checkout"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Checkout metrics
		SessionsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "created_total",
				Help:      "Total number of checkout sessions created",
			},
			[]string{"currency"},
		),
		SessionsExpiredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "expired_total",
				Help:      "Total number of sessions expired by the sweeper",
			},
		),

		// Payment metrics
		PaymentsSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "submitted_total",
				Help:      "Total number of payments accepted for settlement",
			},
			[]string{"method"},
		),
		SettlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "settlements_total",
				Help:      "Total number of settled payments",
			},
			[]string{"outcome"}, // approved, declined, error
		),
		RefundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "refunds",
				Name:      "total",
				Help:      "Total number of refunds by status",
			},
			[]string{"status"}, // processing, completed
		),

		// Scheduler metrics
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "jobs_total",
				Help:      "Total number of deferred jobs run",
			},
			[]string{"kind", "outcome"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "job_duration_seconds",
				Help:      "Deferred job duration in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"kind"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SessionCreated records a new checkout session.
func (m *Metrics) SessionCreated(currency string) {
	m.SessionsCreatedTotal.WithLabelValues(currency).Inc()
}

// SessionsExpired records sessions expired by a sweep.
func (m *Metrics) SessionsExpired(n int) {
	m.SessionsExpiredTotal.Add(float64(n))
}

// PaymentSubmitted records an accepted payment.
func (m *Metrics) PaymentSubmitted(method string) {
	m.PaymentsSubmittedTotal.WithLabelValues(method).Inc()
}

// PaymentSettled records a settlement outcome.
func (m *Metrics) PaymentSettled(outcome string) {
	m.SettlementsTotal.WithLabelValues(outcome).Inc()
}

// RefundRequested records an issued refund.
func (m *Metrics) RefundRequested() {
	m.RefundsTotal.WithLabelValues("processing").Inc()
}

// RefundCompleted records a settled refund.
func (m *Metrics) RefundCompleted() {
	m.RefundsTotal.WithLabelValues("completed").Inc()
}

// JobFinished records a deferred job run.
func (m *Metrics) JobFinished(kind, outcome string, duration time.Duration) {
	m.JobsTotal.WithLabelValues(kind, outcome).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
