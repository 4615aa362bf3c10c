// Package reminder decides which germination and pollination records need a
// follow-up notification and sends each reminder at most once.
package reminder

import (
	"context"
	"time"

	"github.com/orchidlab/labpredict/internal/notification"
)

// State is the lifecycle state of a record
type State string

const (
	StateInitial    State = "initial"
	StateInProgress State = "in_progress"
	StateFinalized  State = "finalized"
)

// ParseState validates a lifecycle state, defaulting empty input to initial
func ParseState(s string) (State, bool) {
	switch State(s) {
	case "", StateInitial:
		return StateInitial, true
	case StateInProgress, StateFinalized:
		return State(s), true
	}
	return "", false
}

// Candidate is the reminder-facing view of a record
type Candidate struct {
	Subject notification.Subject
	Code    string
	Genus   string
	Species string

	// pollination parents
	PollinationType string
	MotherSpecies   string
	FatherSpecies   string

	BaselineDate  time.Time
	PredictedDate *time.Time
	CreatedBy     *string
	State         State
	Imported      bool

	BaselineSent   bool
	PredictionSent bool
}

// Owner returns the owning user, or "" when the record has none
func (c *Candidate) Owner() string {
	if c.CreatedBy == nil {
		return ""
	}
	return *c.CreatedBy
}

// RecordStore is the record collaborator. Candidate queries may over-select;
// the Evaluator makes the final decision. Mark methods are compare-and-set:
// they return false when the flag was already set.
type RecordStore interface {
	// BaselineCandidates returns records of kind whose baseline flag is unset
	// and whose baseline date is on or before dueBy.
	BaselineCandidates(ctx context.Context, kind notification.SubjectKind, dueBy time.Time) ([]Candidate, error)
	// ProximityCandidates returns records of kind whose prediction flag is unset
	// and whose predicted date lies in [from, to].
	ProximityCandidates(ctx context.Context, kind notification.SubjectKind, from, to time.Time) ([]Candidate, error)
	MarkBaselineSent(ctx context.Context, subject notification.Subject) (bool, error)
	MarkPredictionSent(ctx context.Context, subject notification.Subject) (bool, error)
}

// Sink creates notifications. Create returns notification.ErrDuplicate when a
// notification with the same key already exists.
type Sink interface {
	Create(ctx context.Context, recipient string, subject notification.Subject, kind notification.Kind, payload map[string]any) (string, error)
	Exists(ctx context.Context, recipient string, subject notification.Subject, kind notification.Kind) (bool, error)
}
