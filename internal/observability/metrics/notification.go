package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics tracks notification creation, dedup and cache hits
type NotificationMetrics struct {
	operationMetrics
}

// NewNotificationMetrics creates and registers notification metrics
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		operationMetrics: newOperationMetrics("notification",
			prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12)),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) { m.describe(ch) }

// Collect implements prometheus.Collector
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) { m.collect(ch) }
