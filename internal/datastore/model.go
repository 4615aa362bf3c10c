// model.go defines the persisted records and notifications
package datastore

import (
	"time"

	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/reminder"
)

// Projection is the estimate stored on a record. Dates are calendar days
// held as UTC midnights.
type Projection struct {
	PredictedDays        *int       `json:"predicted_days,omitempty"`
	PredictedDate        *time.Time `gorm:"index" json:"predicted_date,omitempty"`
	PredictionConfidence *float64   `json:"prediction_confidence,omitempty"`
	PredictionLevel      string     `gorm:"size:10" json:"prediction_level,omitempty"`
	PredictionMethod     string     `gorm:"size:20" json:"prediction_method,omitempty"`
	PredictionModel      string     `gorm:"size:100" json:"prediction_model,omitempty"`
	PredictedAt          *time.Time `json:"predicted_at,omitempty"`
}

// NewProjection converts an estimate into its stored form
func NewProjection(res estimate.Result, at time.Time) Projection {
	days := res.DaysEstimated
	date := civilDate(res.EstimatedDate)
	confidence := res.Confidence
	at = at.UTC()
	return Projection{
		PredictedDays:        &days,
		PredictedDate:        &date,
		PredictionConfidence: &confidence,
		PredictionLevel:      string(res.ConfidenceLevel),
		PredictionMethod:     string(res.Method),
		PredictionModel:      res.ModelName,
		PredictedAt:          &at,
	}
}

// columns returns the projection as a column map for partial updates
func (p Projection) columns() map[string]any {
	return map[string]any{
		"predicted_days":        p.PredictedDays,
		"predicted_date":        p.PredictedDate,
		"prediction_confidence": p.PredictionConfidence,
		"prediction_level":      p.PredictionLevel,
		"prediction_method":     p.PredictionMethod,
		"prediction_model":      p.PredictionModel,
		"predicted_at":          p.PredictedAt,
	}
}

// Models lists every persisted model in migration order
func Models() []any {
	return []any{&Germination{}, &Pollination{}, &NotificationRecord{}}
}

// Germination is a seed sowing record
type Germination struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:50;index" json:"code"`
	Genus   string `gorm:"size:100;index" json:"genus"`
	Species string `gorm:"size:200;index" json:"species"`
	Climate string `gorm:"size:10" json:"climate,omitempty"`

	Quantity int `json:"quantity,omitempty"`
	Stock    int `json:"stock,omitempty"`

	// BaselineDate is the sowing date
	BaselineDate time.Time      `gorm:"index;not null" json:"baseline_date"`
	State        reminder.State `gorm:"size:20;index;not null;default:initial" json:"state"`
	CreatedBy    *string        `gorm:"size:100;index" json:"created_by,omitempty"`
	// SourceFile marks bulk-imported rows, which never get reminders
	SourceFile string `gorm:"size:255" json:"source_file,omitempty"`

	Projection `gorm:"embedded"`

	ReminderBaselineSent   bool `gorm:"not null;default:false" json:"reminder_baseline_sent"`
	ReminderPredictionSent bool `gorm:"not null;default:false" json:"reminder_prediction_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Request builds the estimation input for the germination milestone
func (g *Germination) Request() estimate.Request {
	return estimate.Request{
		Milestone: estimate.Germination,
		StartDate: g.BaselineDate,
		Species:   g.Species,
		Genus:     g.Genus,
		Climate:   g.Climate,
		Quantity:  float64(g.Quantity),
		Stock:     float64(g.Stock),
	}
}

// Candidate builds the reminder view of the record
func (g *Germination) Candidate() reminder.Candidate {
	return reminder.Candidate{
		Subject:        notification.Subject{Kind: notification.SubjectGermination, ID: g.ID},
		Code:           g.Code,
		Genus:          g.Genus,
		Species:        g.Species,
		BaselineDate:   g.BaselineDate,
		PredictedDate:  g.PredictedDate,
		CreatedBy:      g.CreatedBy,
		State:          g.State,
		Imported:       g.SourceFile != "",
		BaselineSent:   g.ReminderBaselineSent,
		PredictionSent: g.ReminderPredictionSent,
	}
}

// Pollination is a hand-pollination record
type Pollination struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:50;index" json:"code"`
	Genus   string `gorm:"size:100;index" json:"genus"`
	Species string `gorm:"size:200;index" json:"species"`
	Climate string `gorm:"size:10" json:"climate,omitempty"`

	PollinationType string `gorm:"column:type;size:20" json:"type,omitempty"`
	Location        string `gorm:"size:100" json:"location,omitempty"`
	Responsible     string `gorm:"size:100" json:"responsible,omitempty"`
	MotherGenus     string `gorm:"size:100" json:"mother_genus,omitempty"`
	MotherSpecies   string `gorm:"size:200" json:"mother_species,omitempty"`
	FatherGenus     string `gorm:"size:100" json:"father_genus,omitempty"`
	FatherSpecies   string `gorm:"size:200" json:"father_species,omitempty"`

	Quantity  int `json:"quantity,omitempty"`
	Available int `json:"available,omitempty"`

	// BaselineDate is the pollination date
	BaselineDate time.Time      `gorm:"index;not null" json:"baseline_date"`
	State        reminder.State `gorm:"size:20;index;not null;default:initial" json:"state"`
	CreatedBy    *string        `gorm:"size:100;index" json:"created_by,omitempty"`
	SourceFile   string         `gorm:"size:255" json:"source_file,omitempty"`

	Projection `gorm:"embedded"`

	ReminderBaselineSent   bool `gorm:"not null;default:false" json:"reminder_baseline_sent"`
	ReminderPredictionSent bool `gorm:"not null;default:false" json:"reminder_prediction_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Request builds the estimation input for the maturation milestone
func (p *Pollination) Request() estimate.Request {
	return estimate.Request{
		Milestone:       estimate.Maturation,
		StartDate:       p.BaselineDate,
		Species:         p.Species,
		Genus:           p.Genus,
		Climate:         p.Climate,
		Location:        p.Location,
		PollinationType: p.PollinationType,
		Responsible:     p.Responsible,
		Quantity:        float64(p.Quantity),
		Available:       float64(p.Available),
	}
}

// Candidate builds the reminder view of the record
func (p *Pollination) Candidate() reminder.Candidate {
	return reminder.Candidate{
		Subject:         notification.Subject{Kind: notification.SubjectPollination, ID: p.ID},
		Code:            p.Code,
		Genus:           p.Genus,
		Species:         p.Species,
		PollinationType: p.PollinationType,
		MotherSpecies:   joinName(p.MotherGenus, p.MotherSpecies),
		FatherSpecies:   joinName(p.FatherGenus, p.FatherSpecies),
		BaselineDate:    p.BaselineDate,
		PredictedDate:   p.PredictedDate,
		CreatedBy:       p.CreatedBy,
		State:           p.State,
		Imported:        p.SourceFile != "",
		BaselineSent:    p.ReminderBaselineSent,
		PredictionSent:  p.ReminderPredictionSent,
	}
}

// NotificationRecord is the stored form of a notification. The composite
// unique index makes a second notification of a kind for the same
// recipient and record impossible.
type NotificationRecord struct {
	ID          string         `gorm:"primaryKey;size:36"`
	Recipient   string         `gorm:"size:100;not null;uniqueIndex:idx_notification_key,priority:1"`
	SubjectKind string         `gorm:"size:20;not null;uniqueIndex:idx_notification_key,priority:2"`
	SubjectID   uint           `gorm:"not null;uniqueIndex:idx_notification_key,priority:3"`
	Kind        string         `gorm:"size:30;not null;uniqueIndex:idx_notification_key,priority:4"`
	Priority    string         `gorm:"size:10"`
	Status      string         `gorm:"size:20;not null;default:unread"`
	Title       string         `gorm:"size:255"`
	Message     string         `gorm:"type:text"`
	Payload     map[string]any `gorm:"type:text;serializer:json"`
	CreatedAt   time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (NotificationRecord) TableName() string {
	return "notifications"
}

func newNotificationRecord(n *notification.Notification) *NotificationRecord {
	return &NotificationRecord{
		ID:          n.ID,
		Recipient:   n.Recipient,
		SubjectKind: string(n.Subject.Kind),
		SubjectID:   n.Subject.ID,
		Kind:        string(n.Kind),
		Priority:    string(n.Priority),
		Status:      string(n.Status),
		Title:       n.Title,
		Message:     n.Message,
		Payload:     n.Payload,
		CreatedAt:   n.CreatedAt.UTC(),
	}
}

func (r *NotificationRecord) notification() *notification.Notification {
	return &notification.Notification{
		ID:        r.ID,
		Recipient: r.Recipient,
		Subject:   notification.Subject{Kind: notification.SubjectKind(r.SubjectKind), ID: r.SubjectID},
		Kind:      notification.Kind(r.Kind),
		Priority:  notification.Priority(r.Priority),
		Status:    notification.Status(r.Status),
		Title:     r.Title,
		Message:   r.Message,
		Payload:   r.Payload,
		CreatedAt: r.CreatedAt,
	}
}

func joinName(genus, species string) string {
	switch {
	case genus == "":
		return species
	case species == "":
		return genus
	}
	return genus + " " + species
}

// civilDate keeps the calendar day of t as a UTC midnight so that stored
// dates compare by day regardless of the writer's timezone
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
