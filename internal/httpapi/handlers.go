package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/orchidlab/labpredict/internal/datastore"
	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/intake"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/reminder"
)

// Date is a calendar day encoded as YYYY-MM-DD. RFC 3339 timestamps are
// accepted on input and truncated to their day.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, s)
		if tsErr != nil {
			return errors.Newf("invalid date %q, expected YYYY-MM-DD", s).
				Component("httpapi").
				Category(errors.CategoryValidation).
				Build()
		}
		t = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	d.Time = t
	return nil
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

// PredictionRequest is the body of POST /api/v1/predictions
type PredictionRequest struct {
	Milestone       string  `json:"milestone"`
	StartDate       Date    `json:"start_date"`
	Species         string  `json:"species"`
	Genus           string  `json:"genus"`
	Climate         string  `json:"climate"`
	Location        string  `json:"location"`
	PollinationType string  `json:"type"`
	Responsible     string  `json:"responsible"`
	Quantity        float64 `json:"quantity"`
	Stock           float64 `json:"stock"`
	Available       float64 `json:"available"`
}

func (r *PredictionRequest) request() (estimate.Request, error) {
	m, err := estimate.ParseMilestone(r.Milestone)
	if err != nil {
		return estimate.Request{}, err
	}
	return estimate.Request{
		Milestone:       m,
		StartDate:       r.StartDate.Time,
		Species:         r.Species,
		Genus:           r.Genus,
		Climate:         r.Climate,
		Location:        r.Location,
		PollinationType: r.PollinationType,
		Responsible:     r.Responsible,
		Quantity:        r.Quantity,
		Stock:           r.Stock,
		Available:       r.Available,
	}, nil
}

// GerminationRequest is the body of POST /api/v1/germinations
type GerminationRequest struct {
	Code       string `json:"code"`
	Genus      string `json:"genus"`
	Species    string `json:"species"`
	Climate    string `json:"climate"`
	Quantity   int    `json:"quantity"`
	Stock      int    `json:"stock"`
	SowingDate Date   `json:"sowing_date"`
	State      string `json:"state"`
	CreatedBy  string `json:"created_by"`
	SourceFile string `json:"source_file"`
}

// PollinationRequest is the body of POST /api/v1/pollinations
type PollinationRequest struct {
	Code            string `json:"code"`
	Genus           string `json:"genus"`
	Species         string `json:"species"`
	Climate         string `json:"climate"`
	Type            string `json:"type"`
	Location        string `json:"location"`
	Responsible     string `json:"responsible"`
	MotherGenus     string `json:"mother_genus"`
	MotherSpecies   string `json:"mother_species"`
	FatherGenus     string `json:"father_genus"`
	FatherSpecies   string `json:"father_species"`
	Quantity        int    `json:"quantity"`
	Available       int    `json:"available"`
	PollinationDate Date   `json:"pollination_date"`
	State           string `json:"state"`
	CreatedBy       string `json:"created_by"`
	SourceFile      string `json:"source_file"`
}

// StateRequest is the body of the state endpoints
type StateRequest struct {
	State string `json:"state"`
}

// RecordResponse is returned for a registered record
type RecordResponse struct {
	Record  any            `json:"record"`
	Outcome intake.Outcome `json:"outcome"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := map[string]any{
		"status":         "healthy",
		"version":        s.version,
		"timestamp":      time.Now().Format(time.RFC3339),
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	}
	code := http.StatusOK

	if s.predictor != nil {
		resp["stats_version"] = s.predictor.StatsVersion()
		resp["models"] = map[string]bool{
			string(estimate.Germination): s.predictor.ModelLoaded(estimate.Germination),
			string(estimate.Maturation):  s.predictor.ModelLoaded(estimate.Maturation),
		}
	}
	if s.batches != nil {
		if last := s.batches.LastRun(); last > 0 {
			resp["last_reminder_run"] = time.Unix(int64(last), 0).UTC().Format(time.RFC3339)
		}
	}
	if s.database != nil {
		if err := s.database.Ping(c.Request().Context()); err != nil {
			resp["status"] = "degraded"
			resp["database_status"] = "disconnected"
			resp["database_error"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			resp["database_status"] = "connected"
		}
	}
	return c.JSON(code, resp)
}

func (s *Server) handlePredict(c echo.Context) error {
	if s.predictor == nil {
		return s.handleError(c, nil, "prediction service unavailable", http.StatusServiceUnavailable)
	}
	var body PredictionRequest
	if err := c.Bind(&body); err != nil {
		return s.handleError(c, err, "invalid request body", http.StatusBadRequest)
	}
	req, err := body.request()
	if err != nil {
		return s.handleError(c, err, "invalid prediction request", statusFor(err))
	}

	res, err := s.predictor.Estimate(c.Request().Context(), req)
	if err != nil {
		return s.handleError(c, err, "prediction failed", statusFor(err))
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleCreateGermination(c echo.Context) error {
	var body GerminationRequest
	if err := c.Bind(&body); err != nil {
		return s.handleError(c, err, "invalid request body", http.StatusBadRequest)
	}
	state, ok := reminder.ParseState(body.State)
	if !ok {
		return s.handleError(c, nil, "unknown state "+strconv.Quote(body.State), http.StatusBadRequest)
	}

	g := &datastore.Germination{
		Code:         body.Code,
		Genus:        body.Genus,
		Species:      body.Species,
		Climate:      body.Climate,
		Quantity:     body.Quantity,
		Stock:        body.Stock,
		BaselineDate: body.SowingDate.Time,
		State:        state,
		CreatedBy:    optional(body.CreatedBy),
		SourceFile:   body.SourceFile,
	}
	out, err := s.registrar.RegisterGermination(c.Request().Context(), g)
	if err != nil {
		return s.handleError(c, err, "failed to register germination", statusFor(err))
	}
	return c.JSON(http.StatusCreated, RecordResponse{Record: g, Outcome: out})
}

func (s *Server) handleCreatePollination(c echo.Context) error {
	var body PollinationRequest
	if err := c.Bind(&body); err != nil {
		return s.handleError(c, err, "invalid request body", http.StatusBadRequest)
	}
	state, ok := reminder.ParseState(body.State)
	if !ok {
		return s.handleError(c, nil, "unknown state "+strconv.Quote(body.State), http.StatusBadRequest)
	}

	p := &datastore.Pollination{
		Code:            body.Code,
		Genus:           body.Genus,
		Species:         body.Species,
		Climate:         body.Climate,
		PollinationType: body.Type,
		Location:        body.Location,
		Responsible:     body.Responsible,
		MotherGenus:     body.MotherGenus,
		MotherSpecies:   body.MotherSpecies,
		FatherGenus:     body.FatherGenus,
		FatherSpecies:   body.FatherSpecies,
		Quantity:        body.Quantity,
		Available:       body.Available,
		BaselineDate:    body.PollinationDate.Time,
		State:           state,
		CreatedBy:       optional(body.CreatedBy),
		SourceFile:      body.SourceFile,
	}
	out, err := s.registrar.RegisterPollination(c.Request().Context(), p)
	if err != nil {
		return s.handleError(c, err, "failed to register pollination", statusFor(err))
	}
	return c.JSON(http.StatusCreated, RecordResponse{Record: p, Outcome: out})
}

func (s *Server) handleSetState(kind notification.SubjectKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || id == 0 {
			return s.handleError(c, err, "invalid record id", http.StatusBadRequest)
		}
		var body StateRequest
		if err := c.Bind(&body); err != nil {
			return s.handleError(c, err, "invalid request body", http.StatusBadRequest)
		}
		state, ok := reminder.ParseState(body.State)
		if !ok || body.State == "" {
			return s.handleError(c, nil, "unknown state "+strconv.Quote(body.State), http.StatusBadRequest)
		}

		subject := notification.Subject{Kind: kind, ID: uint(id)}
		if err := s.registrar.SetState(c.Request().Context(), subject, state); err != nil {
			return s.handleError(c, err, "failed to update state", statusFor(err))
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
