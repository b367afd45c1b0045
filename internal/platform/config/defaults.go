package config

import "time"

const (
	// DefaultBlacklist rejects names that start with a symbol, camera and
	// screenshot defaults, and embedded resolutions such as 800x600.
	DefaultBlacklist = `(?i)^[^0-9a-z]|^.?DSC|^.?IMG|Screen.*Shot.*[0-9]+|[0-9]{2,}x[0-9]{2,}`

	// DefaultMaxPixels is FullHD 1920×1080 plus 100 000 for formats that
	// carry more rows or columns than visible pixels.
	DefaultMaxPixels int64 = 2173600
	// DefaultMinPixels is 32×32.
	DefaultMinPixels int64 = 1024

	DefaultMinNameLength = 14
	DefaultCompareLines  = 21
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
			Auth: AuthConfig{
				Token:      "",
				NonceTTL:   12 * time.Hour,
				NonceCache: 4096,
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "wpguard.log",
		},
		Web: WebConfig{
			StaticDir: "./web",
		},
		Upload: UploadConfig{
			MinNameLength: DefaultMinNameLength,
			MinPixels:     DefaultMinPixels,
			MaxPixels:     DefaultMaxPixels,
			Blacklist:     DefaultBlacklist,
			TempDir:       "",
			MaxFileSize:   20 * 1024 * 1024,
		},
		Changelog: ChangelogConfig{
			PageURL:      "https://wordpress.org/plugins/%s/changelog/",
			ValidatorURL: "https://wordpress.org/plugins/about/validator/",
			ReadmePath:   "plugins.svn.wordpress.org/%s/trunk/readme.txt",
			CompareLines: DefaultCompareLines,
			Concurrency:  4,
			Timeout:      30 * time.Second,
			Schedule:     "@daily",
			HistoryLimit: 50,
		},
		Mail: MailConfig{
			Host:      "",
			Port:      25,
			From:      "wpguard@localhost",
			TLSPolicy: "opportunistic",
		},
		Watchlist: WatchlistConfig{
			Driver: "sqlite",
			Key:    "plugin_changelog_watch",
		},
		Storage: StorageConfig{
			DSN: "data/wpguard.db",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "wpguard",
		},
	}
}
