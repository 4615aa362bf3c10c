// notifications.go: notification persistence backed by the unique
// (recipient, subject_kind, subject_id, kind) index
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/notification"
	"github.com/orchidlab/labpredict/internal/observability/metrics"
)

const tableNotifications = "notifications"

// NotificationStore implements notification.Store on the notifications table
type NotificationStore struct {
	ds *DataStore
}

// Notifications returns the notification store bound to this DataStore,
// including its transaction when ds is transaction-scoped
func (ds *DataStore) Notifications() *NotificationStore {
	return &NotificationStore{ds: ds}
}

// Save inserts n. The insert does nothing on a key conflict, and a
// conflict is reported as notification.ErrDuplicate.
func (s *NotificationStore) Save(ctx context.Context, n *notification.Notification) error {
	if n == nil {
		return validationError("notification cannot be nil", "notification", nil)
	}

	start := time.Now()
	res := s.ds.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(newNotificationRecord(n))
	s.ds.observe(metrics.OpDbInsert, start, res.Error)
	if res.Error != nil {
		return dbError(res.Error, "save_notification", errors.PriorityMedium,
			"table", tableNotifications,
			"subject", n.Subject.String(),
			"kind", string(n.Kind))
	}
	if res.RowsAffected == 0 {
		return notification.ErrDuplicate
	}
	return nil
}

// Exists reports whether a notification with key is stored
func (s *NotificationStore) Exists(ctx context.Context, key notification.Key) (bool, error) {
	start := time.Now()
	var count int64
	err := s.ds.DB.WithContext(ctx).Model(&NotificationRecord{}).
		Where("recipient = ? AND subject_kind = ? AND subject_id = ? AND kind = ?",
			key.Recipient, string(key.Subject.Kind), key.Subject.ID, string(key.Kind)).
		Count(&count).Error
	s.ds.observe(metrics.OpDbQuery, start, err)
	if err != nil {
		return false, dbError(err, "notification_exists", errors.PriorityMedium,
			"table", tableNotifications, "subject", key.Subject.String())
	}
	return count > 0, nil
}

// Get returns a notification by ID
func (s *NotificationStore) Get(ctx context.Context, id string) (*notification.Notification, error) {
	start := time.Now()
	var rec NotificationRecord
	err := s.ds.DB.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.ds.observe(metrics.OpDbQuery, start, nil)
		return nil, notification.ErrNotificationNotFound
	}
	s.ds.observe(metrics.OpDbQuery, start, err)
	if err != nil {
		return nil, dbError(err, "get_notification", errors.PriorityLow, "table", tableNotifications, "id", id)
	}
	return rec.notification(), nil
}

// List returns notifications matching filter, newest first
func (s *NotificationStore) List(ctx context.Context, filter *notification.FilterOptions) ([]*notification.Notification, error) {
	start := time.Now()
	db := s.ds.DB.WithContext(ctx).Model(&NotificationRecord{}).Order("created_at DESC, id")

	if filter != nil {
		if filter.Recipient != "" {
			db = db.Where("recipient = ?", filter.Recipient)
		}
		if len(filter.Kinds) > 0 {
			kinds := make([]string, 0, len(filter.Kinds))
			for _, k := range filter.Kinds {
				kinds = append(kinds, string(k))
			}
			db = db.Where("kind IN ?", kinds)
		}
		if filter.Subject != nil {
			db = db.Where("subject_kind = ? AND subject_id = ?", string(filter.Subject.Kind), filter.Subject.ID)
		}
		if filter.Since != nil {
			db = db.Where("created_at >= ?", filter.Since.UTC())
		}
		if filter.Limit > 0 {
			db = db.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			db = db.Offset(filter.Offset)
		}
	}

	var recs []NotificationRecord
	err := db.Find(&recs).Error
	s.ds.observe(metrics.OpDbQuery, start, err)
	if err != nil {
		return nil, dbError(err, "list_notifications", errors.PriorityLow, "table", tableNotifications)
	}

	out := make([]*notification.Notification, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].notification())
	}
	return out, nil
}
