package watchlist

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"wpguard/internal/platform/config"
)

// Driver identifiers supported by the watch list.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Dependencies captures external handles required by certain drivers.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

// ConfigFrom maps the watchlist section of the service config.
func ConfigFrom(cfg config.WatchlistConfig) Config {
	out := Config{Driver: cfg.Driver, Key: cfg.Key}
	if cfg.Redis.Addr != "" {
		out.Redis = &RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,

			ConnectTimeout: cfg.Redis.ConnectTimeout,
		}
	}
	return out
}

// New creates a watch list store based on the provided configuration.
func New(cfg Config, deps Dependencies) (Store, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = DriverMemory
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if deps.SQLiteDB == nil {
			return nil, fmt.Errorf("sqlite driver requires database handle")
		}
		return NewSQLite(deps.SQLiteDB, cfg.Key), nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported watchlist driver: %s", driver)
	}
}
