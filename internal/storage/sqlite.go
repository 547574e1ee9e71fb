package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quickcourt/quickcourt/internal/models"
)

// SQLiteStore keeps one row per profile. Token and user share the row, so
// every write and clear is a single statement inside a transaction.
type SQLiteStore struct {
	db      *gorm.DB
	profile string
}

// NewSQLiteStore opens (and migrates) the database at path, or
// ~/.config/quickcourt/session.sqlite when empty
func NewSQLiteStore(path, profile string) (*SQLiteStore, error) {
	if path == "" {
		jsonPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(filepath.Dir(jsonPath), "session.sqlite")
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY between our own goroutines
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}

	return &SQLiteStore{db: db, profile: profile}, nil
}

func (s *SQLiteStore) Load() (Record, error) {
	var row models.PersistedSession
	if err := s.db.Where("profile = ?", s.profile).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("failed to load session: %w", err)
	}

	if row.AuthToken == "" {
		return Record{}, ErrNotFound
	}

	return Record{AuthToken: row.AuthToken, AuthUser: row.AuthUser}, nil
}

func (s *SQLiteStore) Save(rec Record) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var row models.PersistedSession
		err := tx.Where("profile = ?", s.profile).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.PersistedSession{
				Profile:   s.profile,
				AuthToken: rec.AuthToken,
				AuthUser:  rec.AuthUser,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to load session: %w", err)
		}

		if err := tx.Model(&row).Updates(map[string]interface{}{
			"auth_token": rec.AuthToken,
			"auth_user":  rec.AuthUser,
		}).Error; err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Clear() error {
	if err := s.db.Where("profile = ?", s.profile).Delete(&models.PersistedSession{}).Error; err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
