package testing

import (
	"testing"

	"gorm.io/gorm"

	"wpguard/internal/platform/config"
	"wpguard/internal/platform/logging"
	"wpguard/internal/platform/storage"
	"wpguard/internal/utils"
)

// SetupTestConfig returns defaults adjusted for tests: an in-memory watch
// list, a temp log dir and fixed admin secrets.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Auth.Token = "test-admin-token"
	cfg.Server.Auth.NonceSecret = "test-nonce-secret"
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = t.TempDir()
	cfg.Log.File = "test.log"
	cfg.Watchlist.Driver = "memory"
	cfg.Storage.DSN = storage.MemoryDSN
	cfg.Changelog.AlertAddress = "admin@example.org"
	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.FromConfig(cfg.Log))
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })

	return logger
}

// NewLogger is SetupTestLogger for packages that take the tagged logger.
func NewLogger(t *testing.T) *utils.Logger {
	t.Helper()
	return SetupTestLogger(t).Legacy()
}

// SetupTestDB opens a migrated in-memory database closed at test end.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := storage.Open(storage.MemoryDSN)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })
	return db
}
