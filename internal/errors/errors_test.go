package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(err *EnhancedError) {
	r.reported = append(r.reported, err)
	err.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderFields(t *testing.T) {
	t.Parallel()

	ee := Newf("model %s missing", "germination").
		Component("prediction").
		Category(CategoryModelLoad).
		Priority(PriorityHigh).
		Context("path", "models/germination.json").
		Build()

	assert.Equal(t, "prediction", ee.GetComponent())
	assert.Equal(t, "model-loading", ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	assert.Equal(t, "models/germination.json", ee.GetContext()["path"])

	// GetContext returns a copy
	ctx := ee.GetContext()
	ctx["path"] = "changed"
	assert.Equal(t, "models/germination.json", ee.GetContext()["path"])
}

func TestInvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := Newf("x").Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	t.Parallel()

	inner := Newf("record not found").Category(CategoryNotFound).Build()
	outer := New(inner).Component("datastore").Context("operation", "get").Build()

	assert.True(t, IsNotFound(outer))
	assert.True(t, Is(outer, inner))
	assert.False(t, IsConflict(outer))
}

func TestSentinelMatching(t *testing.T) {
	t.Parallel()

	sentinel := Newf("duplicate notification").Category(CategoryConflict).Build()
	wrapped := fmt.Errorf("create: %w", New(sentinel).Context("kind", "baseline_elapsed").Build())
	other := Newf("other conflict").Category(CategoryConflict).Build()

	assert.True(t, Is(wrapped, sentinel))
	assert.False(t, Is(other, sentinel))
	assert.True(t, IsConflict(wrapped))
}

func TestTelemetryReporterReceivesBuiltErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := Newf("stats file corrupt").Component("histstats").Category(CategoryStatsLoad).Build()

	require.Len(t, reporter.reported, 1)
	assert.Same(t, ee, reporter.reported[0])
	assert.True(t, ee.IsReported())
}

func TestScrubMessageForPrivacy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{"query string", "Error at https://api.example.com?api_key=secret123&token=abc", "https://api.example.com?[REDACTED]", "secret123"},
		{"dsn credentials", "dial mysql://lab:hunter2@db:3306/lab failed", "[CREDENTIALS_REDACTED]", "hunter2"},
		{"token", "auth failed token=abc123", "[SECRET_REDACTED]", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scrubMessageForPrivacy(tt.input)
			assert.Contains(t, got, tt.contains)
			assert.False(t, strings.Contains(got, tt.absent), "sensitive value still present: %s", got)
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	t.Parallel()

	ee := Newf("boom").Component("reminder").Category(CategoryDatabase).Context("operation", "mark_flag").Build()
	assert.Equal(t, "Reminder Database Error Mark Flag", generateErrorTitle(ee))
}
