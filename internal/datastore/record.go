package datastore

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/commercehub/notifier/internal/errors"
	"github.com/commercehub/notifier/internal/notification"
)

// NotificationRecord is the gorm entity for a persisted notification.
// Structured fields (data, tags, channels, delivery) are stored as JSON.
type NotificationRecord struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index;index:idx_notif_user_status"`
	Type      string `gorm:"index"`
	Priority  string
	Status    string `gorm:"index:idx_notif_user_status"`
	Title     string
	Message   string
	Data      string
	Tags      string
	Channels  string
	Delivery  string
	CreatedAt time.Time `gorm:"index"`
	ExpiresAt time.Time `gorm:"index"`
}

// TableName returns the table name for the NotificationRecord model.
func (NotificationRecord) TableName() string {
	return "notifications"
}

func toRecord(n *notification.Notification) (*NotificationRecord, error) {
	data, err := marshalJSON(n.Data)
	if err != nil {
		return nil, err
	}
	tags, err := marshalJSON(n.Tags)
	if err != nil {
		return nil, err
	}
	channels, err := marshalJSON(n.Channels)
	if err != nil {
		return nil, err
	}
	delivery, err := marshalJSON(n.Delivery)
	if err != nil {
		return nil, err
	}
	return &NotificationRecord{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Priority:  string(n.Priority),
		Status:    string(n.Status),
		Title:     n.Title,
		Message:   n.Message,
		Data:      data,
		Tags:      tags,
		Channels:  channels,
		Delivery:  delivery,
		CreatedAt: n.CreatedAt,
		ExpiresAt: n.ExpiresAt,
	}, nil
}

func (r *NotificationRecord) toNotification() (*notification.Notification, error) {
	n := &notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      notification.Type(r.Type),
		Priority:  notification.Priority(r.Priority),
		Status:    notification.Status(r.Status),
		Title:     r.Title,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
	if err := unmarshalJSON(r.Data, &n.Data); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(r.Tags, &n.Tags); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(r.Channels, &n.Channels); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(r.Delivery, &n.Delivery); err != nil {
		return nil, err
	}
	return n, nil
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", dbErr(err, "marshal")
	}
	return string(b), nil
}

func unmarshalJSON(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return dbErr(err, "unmarshal")
	}
	return nil
}

// RecordStore implements notification.RecordStore on gorm.
type RecordStore struct {
	db *gorm.DB
}

// Save persists a new notification record.
func (rs *RecordStore) Save(n *notification.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	record, err := toRecord(n)
	if err != nil {
		return err
	}
	if err := rs.db.Create(record).Error; err != nil {
		return dbErr(err, "save")
	}
	return nil
}

// Get retrieves a notification by id.
func (rs *RecordStore) Get(id string) (*notification.Notification, error) {
	var record NotificationRecord
	err := rs.db.First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, recordNotFound(id)
	}
	if err != nil {
		return nil, dbErr(err, "get")
	}
	return record.toNotification()
}

// UpdateStatus applies a forward-only lifecycle transition inside a
// transaction.
func (rs *RecordStore) UpdateStatus(id string, status notification.Status) (*notification.Notification, error) {
	var result *notification.Notification
	err := rs.db.Transaction(func(tx *gorm.DB) error {
		var record NotificationRecord
		err := tx.First(&record, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return recordNotFound(id)
		}
		if err != nil {
			return dbErr(err, "update_status")
		}
		current := notification.Status(record.Status)
		if !current.CanTransitionTo(status) {
			return errors.Newf("illegal status transition %s -> %s", current, status).
				Component("datastore").
				Category(errors.CategoryState).
				Context("notification_id", id).
				Build()
		}
		record.Status = string(status)
		if err := tx.Model(&NotificationRecord{}).
			Where("id = ?", id).
			Update("status", string(status)).Error; err != nil {
			return dbErr(err, "update_status")
		}
		result, err = record.toNotification()
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetDeliveryStatus records a channel outcome once. A channel whose outcome
// is already recorded is left untouched.
func (rs *RecordStore) SetDeliveryStatus(id string, channel notification.Channel, state notification.DeliveryState) error {
	return rs.db.Transaction(func(tx *gorm.DB) error {
		var record NotificationRecord
		err := tx.First(&record, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return recordNotFound(id)
		}
		if err != nil {
			return dbErr(err, "set_delivery")
		}

		n, err := record.toNotification()
		if err != nil {
			return err
		}
		if !n.HasChannel(channel) {
			return errors.Newf("channel %q not requested for notification %s", channel, id).
				Component("datastore").
				Category(errors.CategoryState).
				Build()
		}
		if n.Delivery == nil {
			n.Delivery = make(map[notification.Channel]notification.DeliveryState)
		}
		if _, done := n.Delivery[channel]; done {
			return nil
		}
		if state.At.IsZero() {
			state.At = nowUTC()
		}
		n.Delivery[channel] = state

		delivery, err := marshalJSON(n.Delivery)
		if err != nil {
			return err
		}
		if err := tx.Model(&NotificationRecord{}).
			Where("id = ?", id).
			Update("delivery", delivery).Error; err != nil {
			return dbErr(err, "set_delivery")
		}
		return nil
	})
}

// List returns matching notifications, newest first.
func (rs *RecordStore) List(filter *notification.FilterOptions) ([]*notification.Notification, error) {
	if filter == nil || filter.UserID == "" {
		return nil, errors.Newf("list filter requires a user id").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	query := rs.db.Model(&NotificationRecord{}).Where("user_id = ?", filter.UserID)
	if len(filter.Status) > 0 {
		query = query.Where("status IN ?", statusStrings(filter.Status))
	}
	if len(filter.Types) > 0 {
		query = query.Where("type IN ?", typeStrings(filter.Types))
	}
	query = query.Order("created_at DESC")
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []NotificationRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, dbErr(err, "list")
	}

	result := make([]*notification.Notification, 0, len(records))
	for i := range records {
		n, err := records[i].toNotification()
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, nil
}

// CountUnread returns the number of unread notifications for a user.
func (rs *RecordStore) CountUnread(userID string) (int, error) {
	var count int64
	err := rs.db.Model(&NotificationRecord{}).
		Where("user_id = ? AND status = ?", userID, string(notification.StatusUnread)).
		Count(&count).Error
	if err != nil {
		return 0, dbErr(err, "count_unread")
	}
	return int(count), nil
}

// DeleteExpired removes records past their expiry.
func (rs *RecordStore) DeleteExpired(now time.Time) (int, error) {
	result := rs.db.Where("expires_at > ? AND expires_at < ?", time.Time{}, now).
		Delete(&NotificationRecord{})
	if result.Error != nil {
		return 0, dbErr(result.Error, "delete_expired")
	}
	return int(result.RowsAffected), nil
}

func recordNotFound(id string) error {
	return errors.Newf("notification not found: %s", id).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("notification_id", id).
		Build()
}

func statusStrings(statuses []notification.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func typeStrings(types []notification.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
