package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath  = "PERF_CONFIG"
	EnvAddr        = "PERF_ADDR"
	EnvDBPath      = "PERF_DB_PATH"
	EnvBusyTimeout = "PERF_DB_BUSY_TIMEOUT"
	EnvStaticDir   = "PERF_STATIC_DIR"
	EnvLogDir      = "PERF_LOG_DIR"
	EnvLogLevel    = "PERF_LOG_LEVEL"
	EnvCORSOrigins = "PERF_CORS_ORIGINS"
	EnvDefaultList = "PERF_DEFAULT_LIMIT"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	StaticDir    string   `yaml:"static_dir"`
	CORSOrigins  []string `yaml:"cors_origins"`
	DefaultLimit int      `yaml:"default_limit"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type LogConfig struct {
	Dir        string `yaml:"dir"`
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Stderr     bool   `yaml:"stderr"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			StaticDir:    "web",
			CORSOrigins:  []string{"*"},
			DefaultLimit: 20,
		},
		Database: DatabaseConfig{
			Path:        "db/metrics.db",
			BusyTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Dir:        "log",
			File:       "webService.log",
			Level:      "info",
			MaxSizeMB:  64,
			MaxBackups: 7,
			MaxAgeDays: 7,
		},
	}
}

// Load builds the configuration.
// Priority: environment variables (including .env) > config file > defaults.
// An empty path means PERF_CONFIG, and no file at all is fine.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvStaticDir); v != "" {
		cfg.Server.StaticDir = v
	}
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv(EnvDefaultList); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDefaultList, v, err)
		}
		cfg.Server.DefaultLimit = n
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(EnvBusyTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvBusyTimeout, v, err)
		}
		cfg.Database.BusyTimeout = d
	}
	if v := os.Getenv(EnvLogDir); v != "" {
		cfg.Log.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

func (cfg *Config) Validate() error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if cfg.Server.DefaultLimit <= 0 {
		return fmt.Errorf("server.default_limit must be positive, got %d", cfg.Server.DefaultLimit)
	}
	if cfg.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if cfg.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative, got %s", cfg.Database.BusyTimeout)
	}
	return nil
}

// Save writes the configuration as YAML, e.g. to bootstrap a config file.
func (cfg *Config) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
