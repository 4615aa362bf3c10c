// records.go: germination and pollination persistence, reminder candidate
// queries, idempotency flags and the prediction projection
package datastore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/logger"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/observability/metrics"
	"github.com/orchidlab/labpredict/internal/prediction"
	"github.com/orchidlab/labpredict/internal/reminder"
)

// Table names used in metrics and error context
const (
	tableGerminations = "germinations"
	tablePollinations = "pollinations"
)

// Flag columns
const (
	flagBaseline   = "reminder_baseline_sent"
	flagPrediction = "reminder_prediction_sent"
)

// ownedAndNotImported limits reminder queries to rows that can have a recipient
const ownedAndNotImported = "created_by IS NOT NULL AND created_by <> '' AND (source_file IS NULL OR source_file = '')"

// CreateGermination inserts a germination record
func (ds *DataStore) CreateGermination(ctx context.Context, g *Germination) error {
	if g == nil {
		return validationError("germination cannot be nil", "germination", nil)
	}
	if g.BaselineDate.IsZero() {
		return validationError("sowing date is required", "baseline_date", "")
	}
	g.BaselineDate = civilDate(g.BaselineDate)
	if g.State == "" {
		g.State = reminder.StateInitial
	}

	start := time.Now()
	err := ds.DB.WithContext(ctx).Create(g).Error
	ds.observe(metrics.OpDbInsert, start, err)
	if err != nil {
		return dbError(err, "create_germination", errors.PriorityMedium,
			"table", tableGerminations, "code", g.Code)
	}
	return nil
}

// CreatePollination inserts a pollination record
func (ds *DataStore) CreatePollination(ctx context.Context, p *Pollination) error {
	if p == nil {
		return validationError("pollination cannot be nil", "pollination", nil)
	}
	if p.BaselineDate.IsZero() {
		return validationError("pollination date is required", "baseline_date", "")
	}
	p.BaselineDate = civilDate(p.BaselineDate)
	if p.State == "" {
		p.State = reminder.StateInitial
	}

	start := time.Now()
	err := ds.DB.WithContext(ctx).Create(p).Error
	ds.observe(metrics.OpDbInsert, start, err)
	if err != nil {
		return dbError(err, "create_pollination", errors.PriorityMedium,
			"table", tablePollinations, "code", p.Code)
	}
	return nil
}

// GetGermination loads a germination record by ID
func (ds *DataStore) GetGermination(ctx context.Context, id uint) (*Germination, error) {
	var g Germination
	if err := ds.get(ctx, &g, id, tableGerminations); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetPollination loads a pollination record by ID
func (ds *DataStore) GetPollination(ctx context.Context, id uint) (*Pollination, error) {
	var p Pollination
	if err := ds.get(ctx, &p, id, tablePollinations); err != nil {
		return nil, err
	}
	return &p, nil
}

func (ds *DataStore) get(ctx context.Context, dest any, id uint, table string) error {
	start := time.Now()
	err := ds.DB.WithContext(ctx).First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ds.observe(metrics.OpDbQuery, start, nil)
		return notFoundError(strings.TrimSuffix(table, "s"), fmt.Sprint(id))
	}
	ds.observe(metrics.OpDbQuery, start, err)
	if err != nil {
		return dbError(err, "get", errors.PriorityLow, "table", table, "id", id)
	}
	return nil
}

// UpdateState changes the lifecycle state of a record
func (ds *DataStore) UpdateState(ctx context.Context, subject notification.Subject, state reminder.State) error {
	model, table, err := modelFor(subject.Kind)
	if err != nil {
		return err
	}

	start := time.Now()
	res := ds.DB.WithContext(ctx).Model(model).Where("id = ?", subject.ID).Update("state", state)
	ds.observe(metrics.OpDbUpdate, start, res.Error)
	if res.Error != nil {
		return dbError(res.Error, "update_state", errors.PriorityMedium, "table", table, "id", subject.ID)
	}
	if res.RowsAffected == 0 {
		return notFoundError(strings.TrimSuffix(table, "s"), fmt.Sprint(subject.ID))
	}
	return nil
}

// BaselineCandidates implements reminder.RecordStore
func (ds *DataStore) BaselineCandidates(ctx context.Context, kind notification.SubjectKind, dueBy time.Time) ([]reminder.Candidate, error) {
	q := func(db *gorm.DB) *gorm.DB {
		return db.Where(flagBaseline+" = ?", false).
			Where("state = ?", reminder.StateInitial).
			Where("baseline_date <= ?", civilDate(dueBy)).
			Where(ownedAndNotImported).
			Order("baseline_date, id")
	}
	return ds.candidates(ctx, kind, "baseline_candidates", q)
}

// ProximityCandidates implements reminder.RecordStore
func (ds *DataStore) ProximityCandidates(ctx context.Context, kind notification.SubjectKind, from, to time.Time) ([]reminder.Candidate, error) {
	q := func(db *gorm.DB) *gorm.DB {
		return db.Where(flagPrediction+" = ?", false).
			Where("state <> ?", reminder.StateFinalized).
			Where("predicted_date IS NOT NULL AND predicted_date >= ? AND predicted_date <= ?", civilDate(from), civilDate(to)).
			Where(ownedAndNotImported).
			Order("predicted_date, id")
	}
	return ds.candidates(ctx, kind, "proximity_candidates", q)
}

func (ds *DataStore) candidates(ctx context.Context, kind notification.SubjectKind, op string, scope func(*gorm.DB) *gorm.DB) ([]reminder.Candidate, error) {
	start := time.Now()
	db := scope(ds.DB.WithContext(ctx))

	var (
		out []reminder.Candidate
		err error
	)
	switch kind {
	case notification.SubjectGermination:
		var rows []Germination
		err = db.Find(&rows).Error
		for i := range rows {
			out = append(out, rows[i].Candidate())
		}
	case notification.SubjectPollination:
		var rows []Pollination
		err = db.Find(&rows).Error
		for i := range rows {
			out = append(out, rows[i].Candidate())
		}
	default:
		return nil, validationError("unknown record kind", "kind", kind)
	}

	ds.observe(metrics.OpDbQuery, start, err)
	if err != nil {
		return nil, dbError(err, op, errors.PriorityMedium, "kind", string(kind))
	}
	return out, nil
}

// MarkBaselineSent implements reminder.RecordStore
func (ds *DataStore) MarkBaselineSent(ctx context.Context, subject notification.Subject) (bool, error) {
	return ds.markFlag(ctx, subject, flagBaseline)
}

// MarkPredictionSent implements reminder.RecordStore
func (ds *DataStore) MarkPredictionSent(ctx context.Context, subject notification.Subject) (bool, error) {
	return ds.markFlag(ctx, subject, flagPrediction)
}

// markFlag flips flag from false to true. The WHERE clause makes the update a
// compare-and-set, so of two concurrent writers exactly one sees a change.
func (ds *DataStore) markFlag(ctx context.Context, subject notification.Subject, flag string) (bool, error) {
	model, table, err := modelFor(subject.Kind)
	if err != nil {
		return false, err
	}

	start := time.Now()
	res := ds.DB.WithContext(ctx).Model(model).
		Where("id = ? AND "+flag+" = ?", subject.ID, false).
		Update(flag, true)
	ds.observe(metrics.OpDbUpdate, start, res.Error)
	if res.Error != nil {
		return false, dbError(res.Error, "mark_flag", errors.PriorityHigh,
			"table", table, "id", subject.ID, "flag", flag)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := ds.DB.WithContext(ctx).Model(model).Where("id = ?", subject.ID).Count(&count).Error; err != nil {
		return false, dbError(err, "mark_flag", errors.PriorityMedium, "table", table, "id", subject.ID)
	}
	if count == 0 {
		return false, notFoundError(strings.TrimSuffix(table, "s"), fmt.Sprint(subject.ID))
	}

	if ds.conflicts != nil {
		ds.conflicts.RecordFlagConflict(table, flag)
	}
	ds.log.Debug("idempotency flag already set",
		logger.String("table", table),
		logger.Uint64("id", uint64(subject.ID)),
		logger.String("flag", flag))
	return false, nil
}

// PredictionCandidates implements prediction.RecordSource
func (ds *DataStore) PredictionCandidates(ctx context.Context, m estimate.Milestone, all bool, afterID uint, limit int) ([]prediction.Record, error) {
	start := time.Now()
	db := ds.DB.WithContext(ctx).Where("id > ?", afterID).Order("id").Limit(limit)
	if !all {
		db = db.Where("predicted_date IS NULL")
	}

	var (
		out []prediction.Record
		err error
	)
	switch m {
	case estimate.Germination:
		var rows []Germination
		err = db.Find(&rows).Error
		for i := range rows {
			out = append(out, prediction.Record{ID: rows[i].ID, Request: rows[i].Request()})
		}
	case estimate.Maturation:
		var rows []Pollination
		err = db.Find(&rows).Error
		for i := range rows {
			out = append(out, prediction.Record{ID: rows[i].ID, Request: rows[i].Request()})
		}
	default:
		return nil, validationError("unknown milestone", "milestone", m)
	}

	ds.observe(metrics.OpDbQuery, start, err)
	if err != nil {
		return nil, dbError(err, "prediction_candidates", errors.PriorityMedium, "milestone", string(m))
	}
	return out, nil
}

// SavePrediction implements prediction.RecordSource. Only the projection
// columns are written.
func (ds *DataStore) SavePrediction(ctx context.Context, m estimate.Milestone, id uint, res estimate.Result) error {
	var (
		model any
		table string
	)
	switch m {
	case estimate.Germination:
		model, table = &Germination{}, tableGerminations
	case estimate.Maturation:
		model, table = &Pollination{}, tablePollinations
	default:
		return validationError("unknown milestone", "milestone", m)
	}

	start := time.Now()
	result := ds.DB.WithContext(ctx).Model(model).Where("id = ?", id).
		Updates(NewProjection(res, ds.now()).columns())
	ds.observe(metrics.OpDbUpdate, start, result.Error)
	if result.Error != nil {
		return dbError(result.Error, "save_prediction", errors.PriorityMedium, "table", table, "id", id)
	}
	if result.RowsAffected == 0 {
		return notFoundError(strings.TrimSuffix(table, "s"), fmt.Sprint(id))
	}
	return nil
}

func modelFor(kind notification.SubjectKind) (model any, table string, err error) {
	switch kind {
	case notification.SubjectGermination:
		return &Germination{}, tableGerminations, nil
	case notification.SubjectPollination:
		return &Pollination{}, tablePollinations, nil
	}
	return nil, "", validationError("unknown record kind", "kind", kind)
}
