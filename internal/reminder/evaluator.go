package reminder

import (
	"time"

	"github.com/orchidlab/labpredict/internal/conf"
	"github.com/orchidlab/labpredict/internal/estimate"
)

// Reasons a candidate is not due
const (
	ReasonAlreadySent  = "already_sent"
	ReasonImported     = "imported"
	ReasonNoOwner      = "no_owner"
	ReasonState        = "state"
	ReasonNotYet       = "not_yet"
	ReasonNoPrediction = "no_prediction"
	ReasonNotLeadDay   = "not_lead_day"
	ReasonPast         = "past"
)

// Rules configures the Evaluator
type Rules struct {
	OffsetDays int
	LeadDays   int
	Mode       conf.ProximityMode
	Location   *time.Location
}

// RulesFromSettings builds Rules from reminder settings
func RulesFromSettings(s conf.ReminderSettings) Rules {
	return Rules{
		OffsetDays: s.OffsetDays,
		LeadDays:   s.LeadDays,
		Mode:       s.ProximityMode,
		Location:   s.Location(),
	}
}

// Decision is the verdict of one rule for one candidate. Days is the
// elapsed days for the baseline rule and the remaining days for proximity.
type Decision struct {
	Due    bool
	Reason string
	Days   int
}

// Evaluator applies the reminder rules. It is pure: the same candidate and
// today always give the same decision.
type Evaluator struct {
	rules Rules
}

// NewEvaluator creates an evaluator
func NewEvaluator(rules Rules) *Evaluator {
	if rules.Location == nil {
		rules.Location = time.Local
	}
	if rules.Mode == "" {
		rules.Mode = conf.ProximityExact
	}
	return &Evaluator{rules: rules}
}

// Rules returns the evaluator configuration
func (e *Evaluator) Rules() Rules { return e.rules }

// WithThreshold returns an evaluator using days for both the baseline offset
// and the proximity lead time
func (e *Evaluator) WithThreshold(days int) *Evaluator {
	r := e.rules
	r.OffsetDays = days
	r.LeadDays = days
	return NewEvaluator(r)
}

// Today returns the calendar day of now in the configured timezone
func (e *Evaluator) Today(now time.Time) time.Time {
	return estimate.Date(now.In(e.rules.Location))
}

// BaselineDueBy is the latest baseline date that is due on today
func (e *Evaluator) BaselineDueBy(today time.Time) time.Time {
	return estimate.AddDays(today, -e.rules.OffsetDays)
}

// ProximityRange is the predicted-date range a proximity query must cover
func (e *Evaluator) ProximityRange(today time.Time) (from, to time.Time) {
	to = estimate.AddDays(today, e.rules.LeadDays)
	if e.rules.Mode == conf.ProximityWindow {
		return estimate.Date(today), to
	}
	return to, to
}

// BaselineDue reports whether the baseline-elapsed reminder is due. There is
// no upper bound on elapsed days, so long-overdue records are still due.
func (e *Evaluator) BaselineDue(c *Candidate, today time.Time) Decision {
	elapsed := estimate.DaysBetween(c.BaselineDate, today)

	switch {
	case c.BaselineSent:
		return Decision{Reason: ReasonAlreadySent, Days: elapsed}
	case c.Imported:
		return Decision{Reason: ReasonImported, Days: elapsed}
	case c.Owner() == "":
		return Decision{Reason: ReasonNoOwner, Days: elapsed}
	case c.State != StateInitial:
		return Decision{Reason: ReasonState, Days: elapsed}
	case elapsed < e.rules.OffsetDays:
		return Decision{Reason: ReasonNotYet, Days: elapsed}
	}
	return Decision{Due: true, Days: elapsed}
}

// ProximityDue reports whether the prediction-proximity reminder is due.
// In exact mode the remaining days must equal the lead time; in window
// mode any remaining value in [0, lead] qualifies.
func (e *Evaluator) ProximityDue(c *Candidate, today time.Time) Decision {
	if c.PredictedDate == nil {
		return Decision{Reason: ReasonNoPrediction}
	}
	remaining := estimate.DaysBetween(today, *c.PredictedDate)

	switch {
	case c.PredictionSent:
		return Decision{Reason: ReasonAlreadySent, Days: remaining}
	case c.Imported:
		return Decision{Reason: ReasonImported, Days: remaining}
	case c.Owner() == "":
		return Decision{Reason: ReasonNoOwner, Days: remaining}
	case c.State == StateFinalized:
		return Decision{Reason: ReasonState, Days: remaining}
	case remaining < 0:
		return Decision{Reason: ReasonPast, Days: remaining}
	}

	if e.rules.Mode == conf.ProximityWindow {
		if remaining <= e.rules.LeadDays {
			return Decision{Due: true, Days: remaining}
		}
		return Decision{Reason: ReasonNotYet, Days: remaining}
	}

	if remaining == e.rules.LeadDays {
		return Decision{Due: true, Days: remaining}
	}
	return Decision{Reason: ReasonNotLeadDay, Days: remaining}
}
