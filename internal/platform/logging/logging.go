package logging

import (
	"fmt"
	"log/slog"

	"wpguard/internal/platform/config"
	"wpguard/internal/utils"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// FromConfig maps the log section of the service config.
func FromConfig(cfg config.LogConfig) Config {
	return Config{Level: cfg.Level, Dir: cfg.Dir, Filename: cfg.File}
}

// Logger provides access to both slog and the tagged logging API.
type Logger struct {
	legacy *utils.Logger
}

// New creates a new Logger instance backed by the utils logger.
func New(cfg Config) (*Logger, error) {
	logCfg := &utils.LogCfg{
		LogLevel: cfg.Level,
		LogDir:   cfg.Dir,
		LogFile:  cfg.Filename,
	}
	legacy, err := utils.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return &Logger{legacy: legacy}, nil
}

// Legacy exposes the tagged logger that domain services depend on.
func (l *Logger) Legacy() *utils.Logger {
	return l.legacy
}

// Slog exposes the structured logger for new integrations.
func (l *Logger) Slog() *slog.Logger {
	return l.legacy.Slog()
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.legacy == nil {
		return nil
	}
	return l.legacy.Close()
}
