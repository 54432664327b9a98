package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	StudyDay  StudyDayConfig  `yaml:"study_day"`
	User      UserConfig      `yaml:"user"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AllowedOrigins enables CORS on the HTTP surface for browser clients.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls the slog level and, when Path is set, rotation of the
// log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StudyDayConfig sets where one day's attempts end and the next begin.
type StudyDayConfig struct {
	DayStartHour int    `yaml:"day_start_hour"`
	TimeZone     string `yaml:"time_zone"`
}

type UserConfig struct {
	DefaultID string `yaml:"default_id"`
}

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "attempts.db",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Transport: TransportConfig{
			Mode: TransportStdio,
		},
		StudyDay: StudyDayConfig{
			DayStartHour: 4,
			TimeZone:     "Local",
		},
		User: UserConfig{
			DefaultID: "local",
		},
	}
}

// Load reads configuration from an optional YAML file and environment
// variables. Variables from a dotenv file (ATTEMPTS_ENV_FILE, or ./.env when
// present) fill in anything not already set in the environment.
func Load() (Config, error) {
	if err := loadDotEnv(os.Getenv("ATTEMPTS_ENV_FILE")); err != nil {
		return Config{}, err
	}

	cfg := Default()

	if path := os.Getenv("ATTEMPTS_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db path is required")
	}
	switch c.Transport.Mode {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	if c.StudyDay.DayStartHour < 0 || c.StudyDay.DayStartHour > 23 {
		return fmt.Errorf("invalid day start hour %d", c.StudyDay.DayStartHour)
	}
	if c.User.DefaultID == "" {
		return fmt.Errorf("default user id is required")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("ATTEMPTS_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := envInt("ATTEMPTS_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if origins := os.Getenv("ATTEMPTS_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	if dbPath := os.Getenv("ATTEMPTS_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("ATTEMPTS_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("ATTEMPTS_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if mode := os.Getenv("ATTEMPTS_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = strings.ToLower(mode)
	}
	if enabled := os.Getenv("ATTEMPTS_AUTH_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid ATTEMPTS_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = v
	}
	if err := envInt("ATTEMPTS_DAY_START_HOUR", &cfg.StudyDay.DayStartHour); err != nil {
		return err
	}
	if tz := os.Getenv("ATTEMPTS_TIME_ZONE"); tz != "" {
		cfg.StudyDay.TimeZone = tz
	}
	if user := os.Getenv("ATTEMPTS_DEFAULT_USER"); user != "" {
		cfg.User.DefaultID = user
	}
	return nil
}

func envInt(name string, dst *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = v
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
