package datastore

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/commercehub/notifier/internal/errors"
	"github.com/commercehub/notifier/internal/notification"
)

// User is the gorm entity for the user directory. Preferences are stored as
// JSON; an empty value means all defaults (everything allowed).
type User struct {
	ID          string `gorm:"primaryKey"`
	Username    string `gorm:"uniqueIndex"`
	Email       string
	Role        string `gorm:"index"`
	Preferences string
	CreatedAt   time.Time
}

// TableName returns the table name for the User model.
func (User) TableName() string {
	return "users"
}

// UserDirectory implements notification.UserDirectory on gorm.
type UserDirectory struct {
	db *gorm.DB
}

// Create inserts a user. Preferences may be nil.
func (ud *UserDirectory) Create(user *User, prefs *notification.Preferences) error {
	if prefs != nil {
		data, err := json.Marshal(prefs)
		if err != nil {
			return dbErr(err, "user_create")
		}
		user.Preferences = string(data)
	}
	if err := ud.db.Create(user).Error; err != nil {
		return dbErr(err, "user_create")
	}
	return nil
}

func (ud *UserDirectory) get(ctx context.Context, userID string) (*User, error) {
	var user User
	err := ud.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Newf("user not found: %s", userID).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("user_id", userID).
			Build()
	}
	if err != nil {
		return nil, dbErr(err, "user_get")
	}
	return &user, nil
}

// GetPreferences returns the user's notification preferences. A user with no
// stored preferences gets the zero value, which allows everything.
func (ud *UserDirectory) GetPreferences(ctx context.Context, userID string) (*notification.Preferences, error) {
	user, err := ud.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := &notification.Preferences{}
	if user.Preferences != "" {
		if err := json.Unmarshal([]byte(user.Preferences), prefs); err != nil {
			return nil, dbErr(err, "user_preferences")
		}
	}
	return prefs, nil
}

// GetEmail returns the user's email address.
func (ud *UserDirectory) GetEmail(ctx context.Context, userID string) (string, error) {
	user, err := ud.get(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// ResolveIDs returns the deduplicated union of users matched by explicit id,
// by username and by role. Unknown ids and usernames are skipped, not
// errors.
func (ud *UserDirectory) ResolveIDs(ctx context.Context, userIDs, usernames, roles []string) ([]string, error) {
	seen := make(map[string]bool)
	var resolved []string
	add := func(ids ...string) {
		for _, id := range ids {
			if id != "" && !seen[id] {
				seen[id] = true
				resolved = append(resolved, id)
			}
		}
	}

	if len(userIDs) > 0 {
		var ids []string
		err := ud.db.WithContext(ctx).Model(&User{}).
			Where("id IN ?", userIDs).
			Pluck("id", &ids).Error
		if err != nil {
			return nil, dbErr(err, "resolve_ids")
		}
		add(ids...)
	}
	if len(usernames) > 0 {
		var ids []string
		err := ud.db.WithContext(ctx).Model(&User{}).
			Where("username IN ?", usernames).
			Pluck("id", &ids).Error
		if err != nil {
			return nil, dbErr(err, "resolve_usernames")
		}
		add(ids...)
	}
	if len(roles) > 0 {
		ids, err := ud.ListByRoles(ctx, roles...)
		if err != nil {
			return nil, err
		}
		add(ids...)
	}
	return resolved, nil
}

// ListByRoles returns the ids of all users holding any of the given roles.
func (ud *UserDirectory) ListByRoles(ctx context.Context, roles ...string) ([]string, error) {
	var ids []string
	err := ud.db.WithContext(ctx).Model(&User{}).
		Where("role IN ?", roles).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, dbErr(err, "list_by_roles")
	}
	return ids, nil
}
