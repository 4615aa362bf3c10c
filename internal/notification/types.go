// Package notification is the reminder sink: it stores at most one
// notification per (recipient, subject, kind) and reports whether one exists.
package notification

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orchidlab/labpredict/internal/errors"
)

// Kind identifies which reminder rule produced a notification
type Kind string

const (
	// KindBaselineElapsed fires once the fixed offset after the baseline date has passed
	KindBaselineElapsed Kind = "baseline_elapsed"
	// KindPredictionProximity fires when the predicted date is lead days away
	KindPredictionProximity Kind = "prediction_proximity"
)

// Valid reports whether k is a known notification kind
func (k Kind) Valid() bool {
	return k == KindBaselineElapsed || k == KindPredictionProximity
}

// SubjectKind is the record table a notification is about
type SubjectKind string

const (
	SubjectGermination SubjectKind = "germination"
	SubjectPollination SubjectKind = "pollination"
)

// Subject identifies the record a notification refers to
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   uint        `json:"id"`
}

func (s Subject) String() string {
	return fmt.Sprintf("%s/%d", s.Kind, s.ID)
}

// Priority levels for notifications
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Status represents the read state of a notification
type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

var (
	// ErrNotificationNotFound is returned when a notification ID is unknown
	ErrNotificationNotFound = errors.Newf("notification not found").Component("notification").Category(errors.CategoryNotFound).Build()
	// ErrDuplicate is returned when a notification with the same key already exists
	ErrDuplicate = errors.Newf("notification already exists").Component("notification").Category(errors.CategoryConflict).Build()
	// ErrRateLimited is returned when the creation rate limit could not be satisfied
	ErrRateLimited = errors.Newf("notification rate limit exceeded").Component("notification").Category(errors.CategoryLimit).Build()
)

// Key is the uniqueness key of a notification
type Key struct {
	Recipient string
	Subject   Subject
	Kind      Kind
}

// String renders the key in a stable form usable as a cache key
func (k Key) String() string {
	return strings.Join([]string{k.Recipient, string(k.Subject.Kind), fmt.Sprint(k.Subject.ID), string(k.Kind)}, "|")
}

// Notification is a reminder addressed to a lab user about one record
type Notification struct {
	ID        string         `json:"id"`
	Recipient string         `json:"recipient"`
	Subject   Subject        `json:"subject"`
	Kind      Kind           `json:"kind"`
	Priority  Priority       `json:"priority"`
	Status    Status         `json:"status"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewNotification creates an unread notification with a fresh ID
func NewNotification(recipient string, subject Subject, kind Kind, payload map[string]any) *Notification {
	priority := PriorityMedium
	if kind == KindPredictionProximity {
		priority = PriorityHigh
	}
	return &Notification{
		ID:        uuid.New().String(),
		Recipient: recipient,
		Subject:   subject,
		Kind:      kind,
		Priority:  priority,
		Status:    StatusUnread,
		Payload:   deepCopyPayload(payload),
		CreatedAt: time.Now(),
	}
}

// Key returns the uniqueness key of n
func (n *Notification) Key() Key {
	return Key{Recipient: n.Recipient, Subject: n.Subject, Kind: n.Kind}
}

// WithText sets title and message
func (n *Notification) WithText(title, message string) *Notification {
	n.Title = title
	n.Message = message
	return n
}

// WithPayload adds a payload entry
func (n *Notification) WithPayload(key string, value any) *Notification {
	if n.Payload == nil {
		n.Payload = make(map[string]any)
	}
	n.Payload[key] = value
	return n
}

// Clone returns a deep copy, so stored notifications cannot be mutated through
// values handed back to callers.
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	clone := *n
	clone.Payload = deepCopyPayload(n.Payload)
	return &clone
}

func deepCopyPayload(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return deepCopyValue(src).(map[string]any)
}

// deepCopyValue copies maps and slices recursively; other values are returned as is
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}

	original := reflect.ValueOf(v)

	switch original.Kind() {
	case reflect.Map:
		newMap := reflect.MakeMap(original.Type())
		iter := original.MapRange()
		for iter.Next() {
			copied := deepCopyValue(iter.Value().Interface())
			if copied == nil {
				newMap.SetMapIndex(iter.Key(), reflect.Zero(original.Type().Elem()))
			} else {
				newMap.SetMapIndex(iter.Key(), reflect.ValueOf(copied))
			}
		}
		return newMap.Interface()

	case reflect.Slice:
		newSlice := reflect.MakeSlice(original.Type(), original.Len(), original.Len())
		for i := range original.Len() {
			copied := deepCopyValue(original.Index(i).Interface())
			if copied == nil {
				newSlice.Index(i).Set(reflect.Zero(original.Type().Elem()))
			} else {
				newSlice.Index(i).Set(reflect.ValueOf(copied))
			}
		}
		return newSlice.Interface()

	default:
		return v
	}
}
