package datastore

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/commercehub/notifier/internal/errors"
)

// SyncState is a durable key/value cursor row. Values are opaque strings
// (an RFC3339 timestamp or a numeric id).
type SyncState struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// TableName returns the table name for the SyncState model.
func (SyncState) TableName() string {
	return "sync_states"
}

// SyncStateStore persists sync watermarks.
type SyncStateStore struct {
	db *gorm.DB
}

// Get returns the stored value for key, or the empty string if the key has
// never been set.
func (ss *SyncStateStore) Get(key string) (string, error) {
	var state SyncState
	err := ss.db.First(&state, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", dbErr(err, "sync_get")
	}
	return state.Value, nil
}

// Set upserts the value for key.
func (ss *SyncStateStore) Set(key, value string) error {
	state := SyncState{Key: key, Value: value, UpdatedAt: nowUTC()}
	err := ss.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return dbErr(err, "sync_set")
	}
	return nil
}
