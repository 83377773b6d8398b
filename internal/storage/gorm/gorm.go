// Package gormstorage implements the storage.Backend interface on top of any
// GORM dialect. The sqlite and postgres backends wrap it and only differ in
// how the connection is opened.
package gormstorage

import (
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/datamaps/internal/logging"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Preference is one persisted scope blob
type Preference struct {
	Key       string         `gorm:"column:scope_key;primaryKey;size:255"`
	Blob      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName pins the table name regardless of naming strategy
func (Preference) TableName() string {
	return "datamaps_preferences"
}

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// Backend implements storage.Backend using GORM
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// DB exposes the underlying connection to wrapping backends
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the preference table
func (b *Backend) Init() error {
	if err := b.deps.DB.AutoMigrate(&Preference{}); err != nil {
		return fmt.Errorf("failed to migrate preferences table: %w", err)
	}
	b.log("gorm:Init", "preferences table ready", "DEBUG")
	return nil
}

// Close releases the connection pool
func (b *Backend) Close() error {
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

func (b *Backend) Load(key string) ([]byte, bool, error) {
	var pref Preference
	err := b.deps.DB.Where("scope_key = ?", key).Take(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return []byte(pref.Blob), true, nil
}

// Save upserts the blob for key
func (b *Backend) Save(key string, blob []byte) error {
	pref := Preference{Key: key, Blob: datatypes.JSON(blob), UpdatedAt: time.Now().UTC()}
	err := b.deps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"blob", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (b *Backend) log(functionName, msg, level string) {
	if b.deps.LogManager != nil {
		b.deps.LogManager.WriteLog(functionName, msg, level)
	}
}
