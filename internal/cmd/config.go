package cmd

import (
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tagforge/tagfs/engine"
)

// Config is the on-disk configuration for the mount and seed commands.
// Flags override whatever the file sets.
type Config struct {
	StorePath     string `yaml:"store_path"`
	KeepEmptyTags bool   `yaml:"keep_empty_tags"`
	RetryBudget   int    `yaml:"retry_budget"`
	LogLevel      string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		RetryBudget: engine.DefaultRetryBudget,
		LogLevel:    "info",
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RetryBudget, validation.Min(1)),
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error")),
	)
}

// LoadConfig reads and validates a YAML configuration file. An empty path
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the configured level.
func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
