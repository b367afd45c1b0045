package config

import (
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Web       WebConfig       `yaml:"web" mapstructure:"web"`
	Upload    UploadConfig    `yaml:"upload" mapstructure:"upload"`
	Changelog ChangelogConfig `yaml:"changelog" mapstructure:"changelog"`
	Mail      MailConfig      `yaml:"mail" mapstructure:"mail"`
	Watchlist WatchlistConfig `yaml:"watchlist" mapstructure:"watchlist"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

type ServerConfig struct {
	IP   string     `yaml:"ip" mapstructure:"ip"`
	Port int        `yaml:"port" mapstructure:"port"`
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`
}

// AuthConfig guards the admin endpoints. Token is the bearer credential for
// admin callers; NonceSecret signs the one-time action tokens.
type AuthConfig struct {
	Token       string        `yaml:"token" mapstructure:"token"`
	NonceSecret string        `yaml:"nonce_secret" mapstructure:"nonce_secret"`
	NonceTTL    time.Duration `yaml:"nonce_ttl" mapstructure:"nonce_ttl"`
	NonceCache  int           `yaml:"nonce_cache" mapstructure:"nonce_cache"`
}

type LogConfig struct {
	Level string `yaml:"log_level" mapstructure:"log_level"`
	Dir   string `yaml:"log_dir" mapstructure:"log_dir"`
	File  string `yaml:"log_file" mapstructure:"log_file"`
}

type WebConfig struct {
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`
	// AllowedOrigins enables CORS for the listed origins; empty means same origin only.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" mapstructure:"allowed_origins"`
}

// UploadConfig 上传校验配置
type UploadConfig struct {
	MinNameLength int    `yaml:"min_name_length" mapstructure:"min_name_length"`
	MinPixels     int64  `yaml:"min_pixels" mapstructure:"min_pixels"`
	MaxPixels     int64  `yaml:"max_pixels" mapstructure:"max_pixels"`
	Blacklist     string `yaml:"blacklist" mapstructure:"blacklist"`
	TempDir       string `yaml:"temp_dir" mapstructure:"temp_dir"`
	MaxFileSize   int64  `yaml:"max_file_size" mapstructure:"max_file_size"`
}

// ChangelogConfig 插件更新日志检查配置
type ChangelogConfig struct {
	PageURL            string        `yaml:"page_url" mapstructure:"page_url"`
	ValidatorURL       string        `yaml:"validator_url" mapstructure:"validator_url"`
	ReadmePath         string        `yaml:"readme_path" mapstructure:"readme_path"`
	CompareLines       int           `yaml:"compare_lines" mapstructure:"compare_lines"`
	Concurrency        int           `yaml:"concurrency" mapstructure:"concurrency"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Schedule           string        `yaml:"schedule" mapstructure:"schedule"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	AlertAddress       string        `yaml:"alert_address" mapstructure:"alert_address"`
	HistoryLimit       int           `yaml:"history_limit" mapstructure:"history_limit"`
}

// MailConfig 告警邮件发送配置
type MailConfig struct {
	Host      string `yaml:"host" mapstructure:"host"`
	Port      int    `yaml:"port" mapstructure:"port"`
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password" mapstructure:"password"`
	From      string `yaml:"from" mapstructure:"from"`
	TLSPolicy string `yaml:"tls_policy" mapstructure:"tls_policy"`
}

// WatchlistConfig selects the backing store of the watched plugin list.
type WatchlistConfig struct {
	Driver string              `yaml:"driver" mapstructure:"driver"`
	Key    string              `yaml:"key" mapstructure:"key"`
	Redis  WatchlistRedisStore `yaml:"redis" mapstructure:"redis"`
}

type WatchlistRedisStore struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	Username       string        `yaml:"username" mapstructure:"username"`
	Password       string        `yaml:"password" mapstructure:"password"`
	DB             int           `yaml:"db" mapstructure:"db"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// FillDerived sets values that default to another setting: alerts go to
// mail.from unless changelog.alert_address names someone else.
func (c *Config) FillDerived() {
	if strings.TrimSpace(c.Changelog.AlertAddress) == "" {
		c.Changelog.AlertAddress = c.Mail.From
	}
}
