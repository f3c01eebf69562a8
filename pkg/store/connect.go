package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	ErrMissingDatabasePath = errors.New("store: database path is required")
	ErrFailedToOpen        = errors.New("store: failed to open database")
)

// Open connects to the SQLite database described by cfg. Foreign keys are
// switched on so junction rows follow their purchase on delete, and the busy
// timeout keeps concurrent writers from failing immediately.
func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	if cfg.Path == "" {
		return nil, ErrMissingDatabasePath
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Join(ErrFailedToOpen, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Join(ErrFailedToOpen, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errors.Join(ErrFailedToOpen, err)
	}

	return db, nil
}
