// Package datastore provides durable persistence for notification records,
// sync watermarks and the user directory, backed by gorm over sqlite.
package datastore

import (
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/commercehub/notifier/internal/errors"
)

// Store wraps the gorm database handle and owns schema migration.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (or creates) the sqlite database at path and migrates the
// schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("path", path).
			Build()
	}

	if err := db.AutoMigrate(&NotificationRecord{}, &SyncState{}, &User{}); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	return &Store{db: db, logger: logger.With("service", "datastore")}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Records returns the notification record store.
func (s *Store) Records() *RecordStore {
	return &RecordStore{db: s.db}
}

// SyncStates returns the watermark store.
func (s *Store) SyncStates() *SyncStateStore {
	return &SyncStateStore{db: s.db}
}

// Users returns the user directory.
func (s *Store) Users() *UserDirectory {
	return &UserDirectory{db: s.db}
}

func dbErr(err error, op string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
