package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchidlab/labpredict/internal/buildinfo"
	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/datastore"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/reminder"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	return &conf.Settings{
		Logging:  logger.LoggingConfig{DefaultLevel: "error", Console: logger.ConsoleOutput{Enabled: false}},
		Database: conf.DatabaseSettings{Type: datastore.TypeSQLite, Path: filepath.Join(t.TempDir(), "app.db")},
		Prediction: conf.PredictionSettings{
			Workers:   2,
			BatchSize: 10,
		},
		Reminders: conf.ReminderSettings{
			OffsetDays:    5,
			LeadDays:      5,
			ProximityMode: conf.ProximityExact,
			Schedule:      "0 7 * * *",
			Timezone:      "UTC",
			Inline:        true,
		},
		Notifications: conf.NotificationSettings{RateWindow: time.Minute, CacheTTL: time.Minute},
	}
}

func newTestApp(t *testing.T, settings *conf.Settings) *App {
	t.Helper()
	a, err := New(settings, buildinfo.NewContext("1.2.3", ""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewRequiresSettings(t *testing.T) {
	t.Parallel()

	_, err := New(nil, buildinfo.Current())
	require.Error(t, err)
}

func TestNewFailsOnUnreadableStats(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Models.Stats = filepath.Join(t.TempDir(), "missing.json")
	_, err := New(settings, buildinfo.Current())
	require.Error(t, err)
}

func TestRegisterAndRemind(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, testSettings(t))
	ctx := t.Context()
	owner := "ana"

	// registered with inline reminders: the old sowing is handled on create
	out, err := a.Intake.RegisterGermination(ctx, &datastore.Germination{
		Code:         "G-APP",
		Genus:        "Cattleya",
		BaselineDate: time.Now().AddDate(0, 0, -400),
		CreatedBy:    &owner,
	})
	require.NoError(t, err)
	assert.True(t, out.ReminderSent)

	sum, err := a.Remind(ctx, reminder.RunOptions{})
	require.NoError(t, err)
	require.Len(t, sum.Categories, len(reminder.Categories))
	assert.Zero(t, sum.Totals().Sent, "the batch never repeats the inline reminder")

	list, err := a.Notifications.List(ctx, &notification.FilterOptions{Recipient: owner})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRefreshFillsMissingPredictions(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Reminders.Inline = false
	a := newTestApp(t, settings)
	ctx := t.Context()

	require.NoError(t, a.Store.CreatePollination(ctx, &datastore.Pollination{
		Code:         "P-APP",
		BaselineDate: time.Now().AddDate(0, 0, -10),
	}))

	summaries, err := a.Refresh(ctx, false)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		if s.Milestone == estimate.Maturation {
			assert.Equal(t, 1, s.Updated)
		}
	}
}

func TestHTTPServerHealth(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, testSettings(t))
	srv := a.HTTPServer()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	a, err := New(testSettings(t), buildinfo.Current())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestInitLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "labpredict.log")
	settings := &conf.Settings{
		Debug: true,
		Logging: logger.LoggingConfig{
			DefaultLevel: "info",
			FileOutput:   logger.FileOutput{Enabled: true, Path: path, Level: "debug"},
		},
	}

	cl, err := InitLogging(settings)
	require.NoError(t, err)
	t.Cleanup(func() { logger.SetGlobal(nil) })

	GetLogger().Debug("debug line", logger.String("probe", "visible"))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")
}
