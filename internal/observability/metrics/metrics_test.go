package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictionMetricsRecord(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewPredictionMetrics(registry)
	require.NoError(t, err)

	var r Recorder = m
	r.RecordOperation("estimate_germination", "historical")
	r.RecordOperation("estimate_germination", "historical")
	r.RecordDuration("estimate_germination", 0.002)
	m.RecordTierSkip("germination", "ml", "not_loaded")
	m.SetModelLoaded("maturation", true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.operationsTotal.WithLabelValues("estimate_germination", "historical")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.tierSkipsTotal.WithLabelValues("germination", "ml", "not_loaded")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.modelLoaded.WithLabelValues("maturation")), 0)

	expected := `
# HELP labpredict_prediction_errors_total Total number of prediction errors by type
# TYPE labpredict_prediction_errors_total counter
labpredict_prediction_errors_total{error_type="validation",operation="estimate_maturation"} 1
`
	r.RecordError("estimate_maturation", "validation")
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "labpredict_prediction_errors_total"))
}

func TestReminderLastRun(t *testing.T) {
	t.Parallel()

	m, err := NewReminderMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Zero(t, m.LastRun())

	m.SetLastRun(1700000000)
	assert.InDelta(t, 1700000000, m.LastRun(), 0)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewReminderMetrics(registry)
	require.NoError(t, err)
	_, err = NewReminderMetrics(registry)
	require.Error(t, err)
}

func TestAllSubsystemsShareRegistry(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewPredictionMetrics(registry)
	require.NoError(t, err)
	rm, err := NewReminderMetrics(registry)
	require.NoError(t, err)
	nm, err := NewNotificationMetrics(registry)
	require.NoError(t, err)
	dm, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)

	rm.RecordOperation("pollination_proximity", StatusSent)
	rm.SetLastRun(1700000000)
	nm.RecordOperation(OpNotificationCreate, StatusDuplicate)
	dm.RecordFlagConflict("germinations", "reminder_baseline_sent")

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["labpredict_reminder_operations_total"])
	assert.True(t, names["labpredict_reminder_last_run_timestamp_seconds"])
	assert.True(t, names["labpredict_notification_operations_total"])
	assert.True(t, names["labpredict_datastore_flag_conflicts_total"])
}

func TestMemoryRecorderConcurrent(t *testing.T) {
	t.Parallel()

	r := NewMemoryRecorder()
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			r.RecordOperation(OpEstimate, StatusSuccess)
			r.RecordDuration(OpEstimate, 0.1)
			r.RecordError(OpEstimate, "io")
		})
	}
	wg.Wait()

	assert.Equal(t, 20, r.OperationCount(OpEstimate, StatusSuccess))
	assert.Equal(t, 20, r.ErrorCount(OpEstimate, "io"))
	assert.Len(t, r.Durations(OpEstimate), 20)
	assert.Nil(t, r.Durations("missing"))
	assert.Zero(t, r.OperationCount("missing", StatusSuccess))
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	assert.IsType(t, NopRecorder{}, OrNop(nil))
	mem := NewMemoryRecorder()
	assert.Same(t, mem, OrNop(mem))
}
