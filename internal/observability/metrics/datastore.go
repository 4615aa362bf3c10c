package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics tracks record queries, flag updates and transactions
type DatastoreMetrics struct {
	operationMetrics

	flagConflictsTotal *prometheus.CounterVec
}

// NewDatastoreMetrics creates and registers datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{
		operationMetrics: newOperationMetrics("datastore",
			prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15)),
		flagConflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labpredict",
				Subsystem: "datastore",
				Name:      "flag_conflicts_total",
				Help:      "Idempotency flag updates that found the flag already set",
			},
			[]string{"table", "flag"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

// RecordFlagConflict counts a compare-and-set that lost the race
func (m *DatastoreMetrics) RecordFlagConflict(table, flag string) {
	m.flagConflictsTotal.WithLabelValues(table, flag).Inc()
}

// Describe implements prometheus.Collector
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.describe(ch)
	m.flagConflictsTotal.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.collect(ch)
	m.flagConflictsTotal.Collect(ch)
}
