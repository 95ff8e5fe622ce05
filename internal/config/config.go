// Package config loads the YAML configuration file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/luki/hwsensors/internal/backend"
)

// LogConfig controls the logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// ChipConfig overrides the labels of one chip and hides some of its
// features, keyed by feature name ("temp1").
type ChipConfig struct {
	Labels map[string]string `yaml:"labels"`
	Ignore []string          `yaml:"ignore"`
}

// Config is the whole configuration file.
type Config struct {
	SysfsRoot    string                `yaml:"sysfs_root"`
	Source       string                `yaml:"source"`
	PollInterval time.Duration         `yaml:"poll_interval"`
	HistorySize  int                   `yaml:"history_size"`
	DataDir      string                `yaml:"data_dir"`
	Record       bool                  `yaml:"record"`
	Log          LogConfig             `yaml:"log"`
	Chips        map[string]ChipConfig `yaml:"chips"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		SysfsRoot:    "/",
		Source:       "libsensors",
		PollInterval: time.Second,
		HistorySize:  600,
		DataDir:      "~/.sensors-data",
		Record:       true,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/hwsensors/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hwsensors", "config.yaml")
}

// Load reads path over the defaults. A missing file is not an error.
// The result is not validated; callers apply their overrides and then
// call Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, errors.Wrap(err, "read config")
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, errors.Wrapf(err, "parse config %s", path)
			}
		}
	}
	cfg.DataDir = ExpandHome(cfg.DataDir)
	cfg.Log.File = ExpandHome(cfg.Log.File)
	return cfg, nil
}

// Validate rejects settings the program cannot run with.
func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.HistorySize <= 0 {
		return errors.Errorf("history_size must be positive, got %d", c.HistorySize)
	}
	if c.SysfsRoot == "" {
		return errors.New("sysfs_root must not be empty")
	}
	return nil
}

// Overrides converts the chips section for the sysfs backend.
func (c Config) Overrides() map[string]backend.ChipOverrides {
	if len(c.Chips) == 0 {
		return nil
	}
	out := make(map[string]backend.ChipOverrides, len(c.Chips))
	for name, chip := range c.Chips {
		out[name] = backend.ChipOverrides{Labels: chip.Labels, Ignore: chip.Ignore}
	}
	return out
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
