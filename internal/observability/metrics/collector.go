package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// operationMetrics is the counter / histogram / error trio behind every
// subsystem's Recorder implementation.
type operationMetrics struct {
	operationsTotal *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
}

func newOperationMetrics(subsystem string, buckets []float64) operationMetrics {
	return operationMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labpredict",
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      fmt.Sprintf("Total number of %s operations by outcome", subsystem),
			},
			[]string{"operation", "status"},
		),
		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "labpredict",
				Subsystem: subsystem,
				Name:      "operation_duration_seconds",
				Help:      fmt.Sprintf("Time taken by %s operations", subsystem),
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labpredict",
				Subsystem: subsystem,
				Name:      "errors_total",
				Help:      fmt.Sprintf("Total number of %s errors by type", subsystem),
			},
			[]string{"operation", "error_type"},
		),
	}
}

func (m *operationMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

func (m *operationMetrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

func (m *operationMetrics) RecordError(operation, errorType string) {
	m.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

func (m *operationMetrics) describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.durationSeconds.Describe(ch)
	m.errorsTotal.Describe(ch)
}

func (m *operationMetrics) collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.durationSeconds.Collect(ch)
	m.errorsTotal.Collect(ch)
}
