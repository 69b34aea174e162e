// Package config loads statuswatch settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "2m" or "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds the session settings.
type Config struct {
	// Providers is the selected built-in provider keys; empty selects
	// all built-ins. Custom feeds are always polled.
	Providers []string `yaml:"providers"`
	// PollInterval is the revalidation period.
	PollInterval Duration `yaml:"poll_interval"`
	// WindowDays is the rolling history window.
	WindowDays int `yaml:"window_days"`
	// MaxDescription bounds sanitized description length in runes.
	MaxDescription int `yaml:"max_description"`
	// MaxFeedItems caps entries taken from one feed fetch.
	MaxFeedItems int `yaml:"max_feed_items"`
	// DatabasePath locates the sqlite file for retained incidents and
	// custom feed registrations.
	DatabasePath string `yaml:"database_path"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		PollInterval:   Duration(2 * time.Minute),
		WindowDays:     7,
		MaxDescription: 200,
		MaxFeedItems:   25,
	}
}

// Load reads the config file at path, applying defaults for anything
// unset. A missing file is not an error; it yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = Duration(2 * time.Minute)
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.MaxDescription <= 0 {
		cfg.MaxDescription = 200
	}
	if cfg.MaxFeedItems <= 0 {
		cfg.MaxFeedItems = 25
	}

	return cfg, nil
}
