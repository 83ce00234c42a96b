package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"quickroot/runner"
)

// FileName is the optional config file inside DataDir.
const FileName = "config.yaml"

// Config holds quickroot settings. Precedence: environment, then
// <DataDir>/config.yaml, then defaults.
type Config struct {
	DataDir   string `yaml:"data_dir" env:"QUICKROOT_DATA_DIR"`
	ExportDir string `yaml:"export_dir" env:"QUICKROOT_EXPORT_DIR"`
	Elevation string `yaml:"elevation" env:"QUICKROOT_ELEVATION"`
	LogLevel  string `yaml:"log_level" env:"QUICKROOT_LOG_LEVEL"`
}

// Default returns the built-in settings rooted at home.
func Default(home string) Config {
	return Config{
		DataDir:   filepath.Join(home, ".quickroot"),
		ExportDir: filepath.Join(home, "Downloads"),
		Elevation: string(runner.ElevationSu),
		LogLevel:  "info",
	}
}

// Load resolves the configuration for the current user.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFrom(home)
}

// LoadFrom resolves the configuration using home for defaults.
func LoadFrom(home string) (*Config, error) {
	cfg := Default(home)

	// the data dir may itself come from the environment
	if err := parseEnv(&cfg); err != nil {
		return nil, err
	}

	path := filepath.Join(cfg.DataDir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if err := parseEnv(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir must not be empty")
	}
	if strings.TrimSpace(c.ExportDir) == "" {
		return errors.New("export_dir must not be empty")
	}
	if _, err := runner.ParseElevation(c.Elevation); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// ElevationMode returns the parsed elevation. Validate must have passed.
func (c *Config) ElevationMode() runner.Elevation {
	e, _ := runner.ParseElevation(c.Elevation)
	return e
}

// Level maps LogLevel onto slog.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}

// OpenLogger returns a text logger appending to <DataDir>/quickroot.log.
// The terminal belongs to the UI, so nothing is logged to stderr.
func (c *Config) OpenLogger() (*slog.Logger, func() error, error) {
	level, err := c.Level()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.DataDir, "quickroot.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, f.Close, nil
}
