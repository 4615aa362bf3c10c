package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// ReminderMetrics tracks reminder decisions per category and batch runs
type ReminderMetrics struct {
	operationMetrics

	lastRunTimestamp prometheus.Gauge
}

// NewReminderMetrics creates and registers reminder metrics
func NewReminderMetrics(registry *prometheus.Registry) (*ReminderMetrics, error) {
	m := &ReminderMetrics{
		operationMetrics: newOperationMetrics("reminder",
			prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15)),
		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "labpredict",
			Subsystem: "reminder",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last reminder batch finished",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register reminder metrics: %w", err)
	}
	return m, nil
}

// SetLastRun records when a batch finished
func (m *ReminderMetrics) SetLastRun(unixSeconds float64) {
	m.lastRunTimestamp.Set(unixSeconds)
}

// LastRun returns the unix time of the last finished batch, or 0 before
// the first one
func (m *ReminderMetrics) LastRun() float64 {
	metric := &dto.Metric{}
	if err := m.lastRunTimestamp.Write(metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}

// Describe implements prometheus.Collector
func (m *ReminderMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.describe(ch)
	ch <- m.lastRunTimestamp.Desc()
}

// Collect implements prometheus.Collector
func (m *ReminderMetrics) Collect(ch chan<- prometheus.Metric) {
	m.collect(ch)
	ch <- m.lastRunTimestamp
}
