// Package history mirrors committed irrigation actions into a SQL table.
// The table is an audit trail only; the service never reads it back.
package history

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/prite36/smart-irrigation/internal/models"
)

const writeTimeout = 5 * time.Second

type Recorder struct {
	db *gorm.DB
}

// Open connects to the database and migrates the history table.
func Open(driver, dsn string) (*Recorder, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return NewRecorder(db)
}

func NewRecorder(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&models.ActionHistory{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history table: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record implements irrigationlog.Sink. Write errors are logged only.
func (r *Recorder) Record(entry models.LogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	row := models.ActionHistory{
		EntryID:      entry.ID,
		OccurredAt:   entry.Timestamp,
		Action:       entry.Action,
		Duration:     entry.Duration,
		SoilMoisture: entry.SoilMoisture,
		Notes:        entry.Reason,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("[ERROR] Failed to save irrigation history for %s: %v", entry.Action, err)
	}
}

func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
