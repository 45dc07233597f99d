package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one stored key/value pair
type Entry struct {
	Name      string    `gorm:"primaryKey;type:varchar(255)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName pins the table name
func (Entry) TableName() string {
	return "kv_entries"
}

// SQLite stores values in a local SQLite database
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (and migrates) the database at path
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stderr, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serialises writers
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the database handle
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLite) Get(key string) (string, error) {
	var entry Entry
	if err := s.db.Where("name = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *SQLite) Set(key, value string) error {
	entry := Entry{Name: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(key string) error {
	if err := s.db.Where("name = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Take(key string) (string, error) {
	var value string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var entry Entry
		if err := tx.Where("name = ?", key).First(&entry).Error; err != nil {
			return err
		}
		if err := tx.Where("name = ?", key).Delete(&Entry{}).Error; err != nil {
			return err
		}
		value = entry.Value
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to take %s: %w", key, err)
	}
	return value, nil
}
