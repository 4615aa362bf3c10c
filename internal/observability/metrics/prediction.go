package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PredictionMetrics tracks cascade outcomes, tier skips and model state
type PredictionMetrics struct {
	operationMetrics

	tierSkipsTotal *prometheus.CounterVec
	modelLoaded    *prometheus.GaugeVec
}

// NewPredictionMetrics creates and registers prediction metrics
func NewPredictionMetrics(registry *prometheus.Registry) (*PredictionMetrics, error) {
	m := &PredictionMetrics{
		operationMetrics: newOperationMetrics("prediction",
			prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12)),
		tierSkipsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "labpredict",
				Subsystem: "prediction",
				Name:      "tier_skips_total",
				Help:      "Cascade tiers skipped, by milestone, tier and reason",
			},
			[]string{"milestone", "tier", "reason"},
		),
		modelLoaded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "labpredict",
				Subsystem: "prediction",
				Name:      "model_loaded",
				Help:      "Whether the ML model for a milestone is loaded (1) or not (0)",
			},
			[]string{"milestone"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register prediction metrics: %w", err)
	}
	return m, nil
}

// RecordTierSkip counts a tier that did not produce the final result
func (m *PredictionMetrics) RecordTierSkip(milestone, tier, reason string) {
	m.tierSkipsTotal.WithLabelValues(milestone, tier, reason).Inc()
}

// SetModelLoaded records the ML tier state for a milestone
func (m *PredictionMetrics) SetModelLoaded(milestone string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	m.modelLoaded.WithLabelValues(milestone).Set(v)
}

// Describe implements prometheus.Collector
func (m *PredictionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.describe(ch)
	m.tierSkipsTotal.Describe(ch)
	m.modelLoaded.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *PredictionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.collect(ch)
	m.tierSkipsTotal.Collect(ch)
	m.modelLoaded.Collect(ch)
}
