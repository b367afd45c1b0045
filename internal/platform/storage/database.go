package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wpguard/internal/platform/errors"
	"wpguard/internal/platform/storage/migrations"
)

// MemoryDSN opens a private in-memory database, mostly for tests.
const MemoryDSN = "file::memory:"

// Open opens the sqlite database at dsn and applies pending migrations.
// Parent directories of a file path are created on demand.
func Open(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New(errors.KindStorage, "storage.open", "dsn is required")
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to create data directory", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to open database", err)
	}

	// sqlite serialises writers anyway; one connection keeps an in-memory
	// database alive and shared.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	manager := NewMigrationManager(db)
	manager.AddMigration(&migrations.Migration001Initial{})
	manager.AddMigration(&migrations.Migration002CheckIndexes{})
	if err := manager.RunMigrations(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.close", "failed to get sql handle", err)
	}
	return sqlDB.Close()
}
