// Package gormstore mirrors sessions into a SQL database (SQLite or PostgreSQL) through GORM.
// Every save replaces the session's rows inside one transaction.
package gormstore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/puckstats/shotrecorder/internal/database"
	"github.com/puckstats/shotrecorder/internal/model"
	"github.com/puckstats/shotrecorder/internal/model/convert"
	"github.com/puckstats/shotrecorder/pkg/core"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Backend implements storage.Backend on top of a *gorm.DB.
type Backend struct {
	db     *gorm.DB
	log    zerolog.Logger
	closer func() error
}

// New creates a backend on db. closer, if set, is called by Close.
func New(db *gorm.DB, log zerolog.Logger, closer func() error) *Backend {
	return &Backend{db: db, log: log, closer: closer}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	return database.Migrate(b.db)
}

// Close releases the connection if the backend owns it.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// SaveSession upserts the session row and replaces all of its shots.
func (b *Backend) SaveSession(s *core.Session) error {
	row, shots, err := convert.CoreToSession(s)
	if err != nil {
		return err
	}

	err = b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to upsert session: %w", err)
		}
		if err := tx.Where("session_id = ?", row.ID).Delete(&model.Shot{}).Error; err != nil {
			return fmt.Errorf("failed to clear shots: %w", err)
		}
		if len(shots) == 0 {
			return nil
		}
		if err := tx.Omit(clause.Associations).Create(&shots).Error; err != nil {
			return fmt.Errorf("failed to insert shots: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.log.Trace().Str("session", row.ID).Int("shots", len(shots)).Msg("Session mirrored to database")
	return nil
}

// LoadSession reads a session and its shots back.
func (b *Backend) LoadSession(id uuid.UUID) (core.Session, error) {
	var row model.Session
	err := b.db.Where("id = ?", id.String()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	var shots []model.Shot
	if err := b.db.Where("session_id = ?", row.ID).Order("seq").Find(&shots).Error; err != nil {
		return core.Session{}, fmt.Errorf("failed to load shots: %w", err)
	}
	return convert.SessionToCore(row, shots)
}

// ListSessions returns all session rows, newest first.
func (b *Backend) ListSessions() ([]model.Session, error) {
	var rows []model.Session
	if err := b.db.Order("started_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return rows, nil
}
