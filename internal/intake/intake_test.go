package intake

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/datastore"
	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/histstats"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/prediction"
	"github.com/orchidlab/labpredict/internal/reminder"
)

var (
	jan15 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	// 50 days after jan15
	now = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	ds      *datastore.DataStore
	intake  *Service
	notices *notification.Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)

	ds, err := datastore.Open(conf.DatabaseSettings{
		Type: datastore.TypeSQLite,
		Path: filepath.Join(t.TempDir(), "intake.db"),
	}, datastore.WithLogger(log), datastore.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	stats := histstats.NewStore(histstats.Artifact{
		Version: "test",
		Germination: histstats.TableData{Species: []histstats.Stats{
			{Key: "Cattleya aurantiaca", Median: 42, Min: 30, Max: 60, Count: 8},
		}},
	})
	predictor := prediction.NewService(stats, nil, prediction.WithLogger(log))

	notices := notification.NewService(ds.Notifications(), &notification.ServiceConfig{Logger: log})
	scheduler := reminder.NewScheduler(ds, notices,
		reminder.NewEvaluator(reminder.Rules{OffsetDays: 5, LeadDays: 5, Location: time.UTC}),
		reminder.WithLogger(log),
		reminder.WithClock(func() time.Time { return now }))

	opts = append([]Option{WithLogger(log), WithClock(func() time.Time { return now })}, opts...)
	return &fixture{
		ds:      ds,
		intake:  NewService(ds, predictor, notices, scheduler, opts...),
		notices: notices,
	}
}

func owner(s string) *string { return &s }

func TestRegisterGerminationCatchUp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	g := &datastore.Germination{
		Code:         "G-050",
		Genus:        "Cattleya",
		Species:      "aurantiaca",
		BaselineDate: jan15,
		CreatedBy:    owner("ana"),
	}

	out, err := f.intake.RegisterGermination(t.Context(), g)
	require.NoError(t, err)
	require.NotZero(t, g.ID)

	assert.True(t, out.ReminderSent, "a sowing 50 days old triggers the reminder on create")
	require.NotNil(t, out.Prediction)
	assert.Equal(t, estimate.MethodHistorical, out.Prediction.Method)
	assert.Equal(t, 42, out.Prediction.DaysEstimated)

	stored, err := f.ds.GetGermination(t.Context(), g.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReminderBaselineSent)
	require.NotNil(t, stored.PredictedDate)
	assert.True(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC).Equal(*stored.PredictedDate))

	list, err := f.notices.List(t.Context(), &notification.FilterOptions{Recipient: "ana"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notification.KindBaselineElapsed, list[0].Kind)
	assert.Equal(t, out.Subject, list[0].Subject)
	assert.Equal(t, true, list[0].Payload[reminder.KeySentOnCreate])
}

func TestRegisterGerminationRecentHasNoReminder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	g := &datastore.Germination{
		Code:         "G-NEW",
		Genus:        "Masdevallia",
		BaselineDate: now.AddDate(0, 0, -1),
		CreatedBy:    owner("ana"),
	}

	out, err := f.intake.RegisterGermination(t.Context(), g)
	require.NoError(t, err)
	assert.False(t, out.ReminderSent)
	require.NotNil(t, out.Prediction)
	assert.Equal(t, estimate.MethodHeuristic, out.Prediction.Method)

	list, err := f.notices.List(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRegisterWithoutInlineReminders(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithInlineReminders(false))
	out, err := f.intake.RegisterGermination(t.Context(), &datastore.Germination{
		Code: "G-OLD", BaselineDate: jan15, CreatedBy: owner("ana"),
	})
	require.NoError(t, err)
	assert.False(t, out.ReminderSent)

	stored, err := f.ds.GetGermination(t.Context(), out.Subject.ID)
	require.NoError(t, err)
	assert.False(t, stored.ReminderBaselineSent, "left for the next batch run")
}

func TestRegisterImportedNeverReminds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out, err := f.intake.RegisterPollination(t.Context(), &datastore.Pollination{
		Code:         "P-IMP",
		BaselineDate: jan15,
		CreatedBy:    owner("ana"),
		SourceFile:   "legacy-2023.xlsx",
	})
	require.NoError(t, err)
	assert.False(t, out.ReminderSent)
	require.NotNil(t, out.Prediction)
	assert.Equal(t, estimate.Maturation, out.Prediction.Milestone)
}

func TestRegisterPollinationCatchUp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	p := &datastore.Pollination{
		Code:            "P-001",
		Genus:           "Cattleya",
		Species:         "maxima",
		PollinationType: "SELF",
		MotherGenus:     "Cattleya",
		MotherSpecies:   "maxima",
		BaselineDate:    jan15,
		CreatedBy:       owner("luis"),
	}

	out, err := f.intake.RegisterPollination(t.Context(), p)
	require.NoError(t, err)
	assert.True(t, out.ReminderSent)
	assert.Equal(t, notification.SubjectPollination, out.Subject.Kind)

	list, err := f.notices.List(t.Context(), &notification.FilterOptions{Recipient: "luis"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Cattleya maxima", list[0].Payload[reminder.KeyMotherSpecies])
}

func TestRegisterInvalidRecordRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.intake.RegisterGermination(t.Context(), &datastore.Germination{Code: "G-NODATE", CreatedBy: owner("ana")})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = f.intake.RegisterGermination(t.Context(), nil)
	require.Error(t, err)

	list, err := f.notices.List(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithInlineReminders(false))
	out, err := f.intake.RegisterGermination(t.Context(), &datastore.Germination{
		Code: "G-ST", BaselineDate: jan15, CreatedBy: owner("ana"),
	})
	require.NoError(t, err)

	require.NoError(t, f.intake.SetState(t.Context(), out.Subject, reminder.StateInProgress))
	stored, err := f.ds.GetGermination(t.Context(), out.Subject.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.StateInProgress, stored.State)

	// a started record no longer qualifies for the baseline reminder
	candidates, err := f.ds.BaselineCandidates(t.Context(), notification.SubjectGermination, now)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	err = f.intake.SetState(t.Context(), notification.Subject{Kind: notification.SubjectGermination, ID: 999}, reminder.StateFinalized)
	assert.True(t, errors.IsNotFound(err))
}
