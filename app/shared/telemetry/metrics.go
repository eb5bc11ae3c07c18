package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the instrument set every service records into.
type Metrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, d time.Duration)

	RecordCapacityRejection(ctx context.Context, tournamentID string)
	RecordSignatureFailure(ctx context.Context, source string)
	RecordEscrowReleased(ctx context.Context, kind string, amount int64)
}

// PrometheusMetrics implements Metrics on a prometheus registry.
type PrometheusMetrics struct {
	attempts           *prometheus.CounterVec
	successes          *prometheus.CounterVec
	failures           *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	capacityRejections prometheus.Counter
	signatureFailures  *prometheus.CounterVec
	escrowReleased     *prometheus.CounterVec
}

// NewPrometheusMetrics registers the service instruments on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "service_operation_attempts_total",
			Help: "Service operations started.",
		}, []string{"service", "operation"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "service_operation_success_total",
			Help: "Service operations that returned without an infrastructure error.",
		}, []string{"service", "operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "service_operation_failures_total",
			Help: "Service operations that returned an infrastructure error or panicked.",
		}, []string{"service", "operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "service_operation_duration_seconds",
			Help:    "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		capacityRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registration_capacity_rejections_total",
			Help: "Join attempts rejected because the tournament was full.",
		}),
		signatureFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_signature_failures_total",
			Help: "Payment callbacks or webhooks whose signature did not verify.",
		}, []string{"source"}),
		escrowReleased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_released_minor_units_total",
			Help: "Escrow released to winners or refunded, in minor currency units.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.attempts,
		m.successes,
		m.failures,
		m.duration,
		m.capacityRejections,
		m.signatureFailures,
		m.escrowReleased,
	)
	return m
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(service, operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(service, operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(service, operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, d time.Duration) {
	m.duration.WithLabelValues(service, operation).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordCapacityRejection(_ context.Context, _ string) {
	m.capacityRejections.Inc()
}

func (m *PrometheusMetrics) RecordSignatureFailure(_ context.Context, source string) {
	m.signatureFailures.WithLabelValues(source).Inc()
}

func (m *PrometheusMetrics) RecordEscrowReleased(_ context.Context, kind string, amount int64) {
	m.escrowReleased.WithLabelValues(kind).Add(float64(amount))
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (NoOpMetrics) RecordCapacityRejection(context.Context, string)                        {}
func (NoOpMetrics) RecordSignatureFailure(context.Context, string)                         {}
func (NoOpMetrics) RecordEscrowReleased(context.Context, string, int64)                    {}

var (
	_ Metrics = (*PrometheusMetrics)(nil)
	_ Metrics = NoOpMetrics{}
)
