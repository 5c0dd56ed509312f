package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// Notification sink names accepted by notifications.sink.
const (
	SinkLog    = "log"
	SinkStdout = "stdout"
)

// Config is the full cadence runtime configuration.
type Config struct {
	Database      DatabaseConfig     `toml:"database"`
	Engine        EngineConfig       `toml:"engine"`
	Notifications NotificationConfig `toml:"notifications"`
	Logging       LoggingConfig      `toml:"logging"`
	Server        ServerConfig       `toml:"server"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// EngineConfig tunes lifecycle defaults.
type EngineConfig struct {
	DefaultMaxPostponements int  `toml:"default_max_postponements"`
	ArchiveCompleted        bool `toml:"archive_completed"`
	UpcomingDays            int  `toml:"upcoming_days"`
	StreakWindowDays        int  `toml:"streak_window_days"`
}

// NotificationConfig controls the outbox and its dispatcher.
type NotificationConfig struct {
	Enabled                 bool   `toml:"enabled"`
	TimeoutSeconds          int    `toml:"timeout_seconds"`
	DispatchIntervalSeconds int    `toml:"dispatch_interval_seconds"`
	Sink                    string `toml:"sink"`
}

// LoggingConfig sets the log level and the dev-mode file sink.
type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig enables a logfmt file sink while running in dev mode.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// ServerConfig sets the serve bind address and endpoint paths.
type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// Default returns the built-in configuration with the database at dbPath.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Engine: EngineConfig{
			DefaultMaxPostponements: 3,
			ArchiveCompleted:        false,
			UpcomingDays:            7,
			StreakWindowDays:        30,
		},
		Notifications: NotificationConfig{
			Enabled:                 true,
			TimeoutSeconds:          5,
			DispatchIntervalSeconds: 30,
			Sink:                    SinkLog,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".cadence/log",
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

// Load overlays the TOML file at path on defaults. A missing file returns defaults.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if c.Engine.DefaultMaxPostponements < 0 {
		return fmt.Errorf("engine.default_max_postponements must be >= 0")
	}
	if c.Engine.UpcomingDays <= 0 {
		return fmt.Errorf("engine.upcoming_days must be > 0")
	}
	if c.Engine.StreakWindowDays <= 0 {
		return fmt.Errorf("engine.streak_window_days must be > 0")
	}

	if c.Notifications.TimeoutSeconds <= 0 {
		return fmt.Errorf("notifications.timeout_seconds must be > 0")
	}
	if c.Notifications.DispatchIntervalSeconds <= 0 {
		return fmt.Errorf("notifications.dispatch_interval_seconds must be > 0")
	}
	switch strings.TrimSpace(strings.ToLower(c.Notifications.Sink)) {
	case "", SinkLog, SinkStdout:
	default:
		return fmt.Errorf("invalid notifications.sink: %q", c.Notifications.Sink)
	}

	if _, err := c.Logging.ParseLevel(); err != nil {
		return err
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when logging.dev_file.enabled = true")
	}

	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	return nil
}

// ParseLevel resolves logging.level; empty means info.
func (l LoggingConfig) ParseLevel() (log.Level, error) {
	raw := strings.TrimSpace(strings.ToLower(l.Level))
	if raw == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(raw)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid logging.level: %q", l.Level)
	}
	return level, nil
}

// NotificationTimeout returns the per-call notifier bound.
func (c Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.TimeoutSeconds) * time.Second
}

// DispatchInterval returns how often the dispatcher polls the outbox.
func (c Config) DispatchInterval() time.Duration {
	return time.Duration(c.Notifications.DispatchIntervalSeconds) * time.Second
}

// EnsureConfigDir creates the parent directory of path.
func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
