package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchidlab/labpredict/internal/datastore"
	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/intake"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/reminder"
)

type fakePredictor struct {
	got estimate.Request
	err error
}

func (f *fakePredictor) Estimate(_ context.Context, req estimate.Request) (estimate.Result, error) {
	f.got = req
	if f.err != nil {
		return estimate.Result{}, f.err
	}
	return estimate.NewResult(&req, 42, 85, estimate.HistoricalFloor, estimate.MethodHistorical, "historical"), nil
}

func (f *fakePredictor) ModelLoaded(m estimate.Milestone) bool { return m == estimate.Germination }
func (f *fakePredictor) StatsVersion() string                  { return "2024.1" }

type fakeRegistrar struct {
	germination *datastore.Germination
	pollination *datastore.Pollination
	subject     notification.Subject
	state       reminder.State
	err         error
}

func (f *fakeRegistrar) RegisterGermination(_ context.Context, g *datastore.Germination) (intake.Outcome, error) {
	if f.err != nil {
		return intake.Outcome{}, f.err
	}
	g.ID = 7
	f.germination = g
	return intake.Outcome{Subject: notification.Subject{Kind: notification.SubjectGermination, ID: 7}, ReminderSent: true}, nil
}

func (f *fakeRegistrar) RegisterPollination(_ context.Context, p *datastore.Pollination) (intake.Outcome, error) {
	if f.err != nil {
		return intake.Outcome{}, f.err
	}
	p.ID = 9
	f.pollination = p
	return intake.Outcome{Subject: notification.Subject{Kind: notification.SubjectPollination, ID: 9}}, nil
}

func (f *fakeRegistrar) SetState(_ context.Context, subject notification.Subject, state reminder.State) error {
	f.subject, f.state = subject, state
	return f.err
}

type fakeDB struct{ err error }

type lastRun float64

func (l lastRun) LastRun() float64 { return float64(l) }

func (f fakeDB) Ping(context.Context) error { return f.err }

func newTestServer(cfg Config) *Server {
	cfg.Logger = logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	return New(cfg)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(Config{Predictor: &fakePredictor{}, Database: fakeDB{}, Batches: lastRun(1700000000), Version: "1.2.3"})
	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database_status"])
	assert.Equal(t, "2024.1", body["stats_version"])
	assert.Equal(t, map[string]any{"germination": true, "maturation": false}, body["models"])
	assert.Equal(t, "2023-11-14T22:13:20Z", body["last_reminder_run"])

	down := newTestServer(Config{Database: fakeDB{err: errors.NewStd("database is locked")}})
	rec = do(t, down, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disconnected")
}

func TestMetricsRouteOptional(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "labpredict_up 1\n")
	})
	s := newTestServer(Config{Metrics: handler})
	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "labpredict_up")

	rec = do(t, newTestServer(Config{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "correlation_id")
}

func TestPredict(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{}
	s := newTestServer(Config{Predictor: p})
	rec := do(t, s, http.MethodPost, "/api/v1/predictions",
		`{"milestone":"germination","start_date":"2024-01-15","genus":"Cattleya","species":"aurantiaca","climate":"I"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, estimate.Germination, p.got.Milestone)
	assert.True(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Equal(p.got.StartDate))
	assert.Equal(t, "aurantiaca", p.got.Species)

	var res estimate.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 42, res.DaysEstimated)
	assert.Equal(t, estimate.MethodHistorical, res.Method)
	assert.Equal(t, estimate.LevelHigh, res.ConfidenceLevel)
}

func TestPredictValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(Config{Predictor: &fakePredictor{}})

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown milestone", body: `{"milestone":"flowering","start_date":"2024-01-15"}`},
		{name: "bad date", body: `{"milestone":"germination","start_date":"15/01/2024"}`},
		{name: "malformed json", body: `{"milestone":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/v1/predictions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Len(t, resp.CorrelationID, 8)
		})
	}

	failing := newTestServer(Config{Predictor: &fakePredictor{err: errors.NewStd("heuristic failed")}})
	rec := do(t, failing, http.MethodPost, "/api/v1/predictions", `{"milestone":"maturation","start_date":"2024-01-15"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCreateGermination(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{}
	s := newTestServer(Config{Registrar: reg})
	rec := do(t, s, http.MethodPost, "/api/v1/germinations",
		`{"code":"G-1","genus":"Cattleya","species":"aurantiaca","sowing_date":"2024-01-15","created_by":"ana","stock":20}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.NotNil(t, reg.germination)
	assert.Equal(t, "G-1", reg.germination.Code)
	require.NotNil(t, reg.germination.CreatedBy)
	assert.Equal(t, "ana", *reg.germination.CreatedBy)
	assert.Equal(t, reminder.StateInitial, reg.germination.State)
	assert.Equal(t, 20, reg.germination.Stock)

	var resp struct {
		Record  map[string]any `json:"record"`
		Outcome intake.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 7, resp.Record["id"], 0)
	assert.True(t, resp.Outcome.ReminderSent)
}

func TestCreateGerminationWithoutOwner(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{}
	s := newTestServer(Config{Registrar: reg})
	rec := do(t, s, http.MethodPost, "/api/v1/germinations", `{"code":"G-2","sowing_date":"2024-01-15","created_by":"  "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, reg.germination.CreatedBy)

	rec = do(t, s, http.MethodPost, "/api/v1/germinations", `{"code":"G-3","sowing_date":"2024-01-15","state":"sprouting"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePollinationErrorsMapToStatus(t *testing.T) {
	t.Parallel()

	validation := errors.Newf("pollination date is required").
		Component("datastore").
		Category(errors.CategoryValidation).
		Build()
	s := newTestServer(Config{Registrar: &fakeRegistrar{err: validation}})
	rec := do(t, s, http.MethodPost, "/api/v1/pollinations", `{"code":"P-1","type":"SELF"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	reg := &fakeRegistrar{}
	s = newTestServer(Config{Registrar: reg})
	rec = do(t, s, http.MethodPost, "/api/v1/pollinations",
		`{"code":"P-2","type":"HYBRID","pollination_date":"2024-01-15T10:30:00-05:00","mother_genus":"Cattleya","mother_species":"maxima","created_by":"luis"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "HYBRID", reg.pollination.PollinationType)
	assert.True(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Equal(reg.pollination.BaselineDate))
}

func TestSetStateRoute(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{}
	s := newTestServer(Config{Registrar: reg})

	rec := do(t, s, http.MethodPut, "/api/v1/pollinations/12/state", `{"state":"finalized"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, notification.Subject{Kind: notification.SubjectPollination, ID: 12}, reg.subject)
	assert.Equal(t, reminder.StateFinalized, reg.state)

	rec = do(t, s, http.MethodPut, "/api/v1/germinations/abc/state", `{"state":"finalized"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/v1/germinations/3/state", `{"state":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	missing := newTestServer(Config{Registrar: &fakeRegistrar{err: errors.Newf("germination not found").
		Component("datastore").Category(errors.CategoryNotFound).Build()}})
	rec = do(t, missing, http.MethodPut, "/api/v1/germinations/3/state", `{"state":"in_progress"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordRoutesNeedRegistrar(t *testing.T) {
	t.Parallel()

	s := newTestServer(Config{Predictor: &fakePredictor{}})
	rec := do(t, s, http.MethodPost, "/api/v1/germinations", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
