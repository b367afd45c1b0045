package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"wpguard/internal/platform/errors"
)

const (
	// DefaultPath is read when WPGUARD_CONFIG is unset.
	DefaultPath = ".config.yaml"
	envPrefix   = "WPGUARD_"
)

// Loader reads the yaml config file, applies environment overrides and
// validates the result.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that reads DefaultPath or WPGUARD_CONFIG.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file path, bypassing WPGUARD_CONFIG.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load merges defaults, the yaml file (when present) and WPGUARD_* variables.
// A missing file is not an error; a malformed one is.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("未找到 .env 文件，使用系统环境变量")
		}
	}

	path := l.resolvePath()
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "config.load", "解析配置文件失败: "+path, err)
		}
	case os.IsNotExist(err):
		path = ""
	default:
		return nil, errors.Wrap(errors.KindConfig, "config.load", "读取配置文件失败", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.FillDerived()
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) resolvePath() string {
	if l.path != "" {
		return l.path
	}
	if v, ok := os.LookupEnv(envPrefix + "CONFIG"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return DefaultPath
}

// envAliases are the short variable names accepted next to the
// WPGUARD_<SECTION>_<KEY> names derived from the yaml keys.
var envAliases = map[string]string{
	"server.auth.token":        "ADMIN_TOKEN",
	"server.auth.nonce_secret": "NONCE_SECRET",
	"server.auth.nonce_ttl":    "NONCE_TTL",
	"log.log_level":            "LOG_LEVEL",
	"log.log_dir":              "LOG_DIR",
	"changelog.alert_address":  "ALERT_ADDRESS",
	"watchlist.redis.addr":     "REDIS_ADDR",
	"watchlist.redis.password": "REDIS_PASSWORD",
}

// applyEnv overlays WPGUARD_* variables on cfg. Secrets usually arrive
// this way rather than through the yaml file.
func applyEnv(cfg *Config) error {
	const op = "config.env"
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.KindConfig, op, "序列化配置失败", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return errors.Wrap(errors.KindConfig, op, "加载配置失败", err)
	}
	v.SetEnvPrefix(strings.TrimSuffix(envPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		canonical := envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, canonical, envPrefix+alias); err != nil {
			return errors.Wrap(errors.KindConfig, op, "绑定环境变量失败: "+key, err)
		}
	}
	// omitted from the yaml when empty, so AutomaticEnv cannot see it
	if err := v.BindEnv("web.allowed_origins"); err != nil {
		return errors.Wrap(errors.KindConfig, op, "绑定环境变量失败: web.allowed_origins", err)
	}

	out := &Config{}
	if err := v.Unmarshal(out); err != nil {
		return errors.Wrap(errors.KindConfig, op, "环境变量取值无效", err)
	}
	*cfg = *out
	return nil
}

func (l *Loader) validate(cfg *Config) error {
	const op = "config.validate"
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New(errors.KindConfig, op, fmt.Sprintf("无效的服务端口: %d", cfg.Server.Port))
	}
	if cfg.Upload.MinPixels < 0 || cfg.Upload.MaxPixels < cfg.Upload.MinPixels {
		return errors.New(errors.KindConfig, op, fmt.Sprintf("像素范围无效: [%d, %d]", cfg.Upload.MinPixels, cfg.Upload.MaxPixels))
	}
	if cfg.Upload.MinNameLength < 0 {
		return errors.New(errors.KindConfig, op, "min_name_length 不能为负数")
	}
	if _, err := regexp.Compile(cfg.Upload.Blacklist); err != nil {
		return errors.Wrap(errors.KindConfig, op, "blacklist 正则无效", err)
	}
	if cfg.Changelog.CompareLines <= 0 {
		return errors.New(errors.KindConfig, op, "compare_lines 必须大于 0")
	}
	if cfg.Changelog.Concurrency <= 0 {
		return errors.New(errors.KindConfig, op, "concurrency 必须大于 0")
	}
	if cfg.Changelog.Timeout <= 0 {
		return errors.New(errors.KindConfig, op, "timeout 必须大于 0")
	}
	if _, err := cron.ParseStandard(cfg.Changelog.Schedule); err != nil {
		return errors.Wrap(errors.KindConfig, op, "schedule 无法解析: "+cfg.Changelog.Schedule, err)
	}
	if !strings.Contains(cfg.Changelog.PageURL, "%s") || !strings.Contains(cfg.Changelog.ReadmePath, "%s") {
		return errors.New(errors.KindConfig, op, "page_url 与 readme_path 必须包含 %s 占位符")
	}
	switch strings.ToLower(cfg.Watchlist.Driver) {
	case "memory", "sqlite":
	case "redis":
		if strings.TrimSpace(cfg.Watchlist.Redis.Addr) == "" {
			return errors.New(errors.KindConfig, op, "redis 驱动需要配置 watchlist.redis.addr")
		}
	default:
		return errors.New(errors.KindConfig, op, "不支持的 watchlist 驱动: "+cfg.Watchlist.Driver)
	}
	switch strings.ToLower(cfg.Mail.TLSPolicy) {
	case "", "opportunistic", "mandatory", "none":
	default:
		return errors.New(errors.KindConfig, op, "不支持的 tls_policy: "+cfg.Mail.TLSPolicy)
	}
	return nil
}
