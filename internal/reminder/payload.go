package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/orchidlab/labpredict/internal/estimate"
	"github.com/orchidlab/labpredict/internal/notification"
)

// Payload keys
const (
	KeyCode            = "code"
	KeyRecordKind      = "record_kind"
	KeyRecordID        = "record_id"
	KeyMilestone       = "milestone"
	KeyGenus           = "genus"
	KeySpecies         = "species"
	KeyBaselineDate    = "baseline_date"
	KeyPredictedDate   = "predicted_date"
	KeyDaysElapsed     = "days_elapsed"
	KeyDaysRemaining   = "days_remaining"
	KeyState           = "state"
	KeyPollinationType = "pollination_type"
	KeyMotherSpecies   = "mother_species"
	KeyFatherSpecies   = "father_species"
	KeyReminder        = "reminder"
	KeySentOn          = "sent_on"
	KeySentOnCreate    = "sent_on_create"
)

// selfPollination has no distinct father plant
const selfPollination = "SELF"

// milestoneFor maps a record kind to the milestone its predictions estimate
func milestoneFor(kind notification.SubjectKind) estimate.Milestone {
	if kind == notification.SubjectPollination {
		return estimate.Maturation
	}
	return estimate.Germination
}

// BuildPayload renders the notification payload for a due reminder. days
// is the elapsed days for baseline reminders and the remaining days for
// proximity reminders.
func BuildPayload(kind notification.Kind, c *Candidate, days int, today time.Time) map[string]any {
	p := map[string]any{
		KeyCode:       c.Code,
		KeyRecordKind: string(c.Subject.Kind),
		KeyRecordID:   c.Subject.ID,
		KeyMilestone:  string(milestoneFor(c.Subject.Kind)),
		KeyGenus:      c.Genus,
		KeySpecies:    c.Species,
		KeyState:      string(c.State),
		KeyReminder:   string(kind),
		KeySentOn:     today.Format(time.DateOnly),
	}
	if !c.BaselineDate.IsZero() {
		p[KeyBaselineDate] = c.BaselineDate.Format(time.DateOnly)
	}
	if c.PredictedDate != nil {
		p[KeyPredictedDate] = c.PredictedDate.Format(time.DateOnly)
	}
	if c.Subject.Kind == notification.SubjectPollination {
		p[KeyPollinationType] = c.PollinationType
		p[KeyMotherSpecies] = c.MotherSpecies
		p[KeyFatherSpecies] = c.FatherSpecies
	}

	var title, message string
	switch kind {
	case notification.KindPredictionProximity:
		p[KeyDaysRemaining] = days
		title, message = proximityText(c, days)
	default:
		p[KeyDaysElapsed] = days
		title, message = baselineText(c, days, today)
	}
	p[notification.PayloadTitle] = title
	p[notification.PayloadMessage] = message
	return p
}

func baselineText(c *Candidate, elapsed int, today time.Time) (title, message string) {
	var b strings.Builder
	noun, event := "germination", "sowing"
	if c.Subject.Kind == notification.SubjectPollination {
		noun, event = "pollination", "pollination"
	}
	title = fmt.Sprintf("Check %s %s", noun, c.Code)

	fmt.Fprintf(&b, "%d days have passed since %s.\n\n", elapsed, event)
	writeRecordLines(&b, c, fmt.Sprintf("%s date", capitalize(event)), c.BaselineDate)

	if c.PredictedDate != nil {
		remaining := estimate.DaysBetween(today, *c.PredictedDate)
		if remaining > 0 {
			fmt.Fprintf(&b, "Estimated %s date: %s (%d days remaining)\n\n",
				milestoneFor(c.Subject.Kind), c.PredictedDate.Format(time.DateOnly), remaining)
		} else {
			fmt.Fprintf(&b, "Estimated %s date has passed: %s\n\n",
				milestoneFor(c.Subject.Kind), c.PredictedDate.Format(time.DateOnly))
		}
	}
	fmt.Fprintf(&b, "Review the %s and update the record state.", noun)
	return title, b.String()
}

func proximityText(c *Candidate, remaining int) (title, message string) {
	var b strings.Builder
	noun := "germination"
	if c.Subject.Kind == notification.SubjectPollination {
		noun = "pollination"
	}
	title = "Prediction approaching: " + c.Code

	var predicted time.Time
	if c.PredictedDate != nil {
		predicted = *c.PredictedDate
	}
	fmt.Fprintf(&b, "The estimated %s date is %d days away.\n\n", milestoneFor(c.Subject.Kind), remaining)
	writeRecordLines(&b, c, "Estimated date", predicted)
	fmt.Fprintf(&b, "Get ready to check the %s in the coming days.", noun)
	return title, b.String()
}

// writeRecordLines writes the species or parent lines shared by every message
func writeRecordLines(b *strings.Builder, c *Candidate, dateLabel string, date time.Time) {
	if c.Subject.Kind == notification.SubjectPollination {
		fmt.Fprintf(b, "Type: %s\n", orNA(c.PollinationType))
	} else {
		fmt.Fprintf(b, "Species: %s\n", orNA(strings.TrimSpace(c.Genus+" "+c.Species)))
	}
	if date.IsZero() {
		fmt.Fprintf(b, "%s: N/A\n", dateLabel)
	} else {
		fmt.Fprintf(b, "%s: %s\n", dateLabel, date.Format(time.DateOnly))
	}
	fmt.Fprintf(b, "Current state: %s\n", c.State)

	if c.Subject.Kind == notification.SubjectPollination {
		if c.MotherSpecies != "" {
			fmt.Fprintf(b, "Mother: %s\n", c.MotherSpecies)
		}
		if c.FatherSpecies != "" && !strings.EqualFold(c.PollinationType, selfPollination) {
			fmt.Fprintf(b, "Father: %s\n", c.FatherSpecies)
		}
	}
	b.WriteString("\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
