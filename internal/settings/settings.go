// Package settings loads exchange configuration from
// .secretsanta/settings.yaml.
//
// Every field is optional. Accessors are safe on a nil *Settings and fall
// back to defaults, so a missing file behaves like an empty one.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the settings directory inside an exchange root.
	Dir = ".secretsanta"
	// File is the settings file name inside Dir.
	File = "settings.yaml"

	DefaultRoster = "roster.csv"
)

// Settings holds configuration from .secretsanta/settings.yaml.
type Settings struct {
	// Roster is the roster file, relative to the exchange root.
	Roster string `yaml:"roster"`

	Draw Draw `yaml:"draw"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Outputs names the reporters to run after a successful draw.
	// Example: ["console", "yaml", "cards"]
	Outputs []string `yaml:"outputs"`
}

// Draw tunes the solver.
type Draw struct {
	Seed        uint64 `yaml:"seed"`
	MaxAttempts int    `yaml:"max_attempts"`
	Workers     int    `yaml:"workers"`
}

// Path returns the settings file location for root.
func Path(root string) string {
	return filepath.Join(root, Dir, File)
}

// LoadSettings reads .secretsanta/settings.yaml relative to root.
// Returns nil (not an error) if the file does not exist.
func LoadSettings(root string) (*Settings, error) {
	path := Path(root)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if s.Draw.MaxAttempts < 0 {
		return nil, fmt.Errorf("%s: draw.max_attempts must not be negative", path)
	}
	if s.Draw.Workers < 0 {
		return nil, fmt.Errorf("%s: draw.workers must not be negative", path)
	}
	return &s, nil
}

// Save writes s to .secretsanta/settings.yaml under root.
func (s *Settings) Save(root string) error {
	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RosterFile returns the configured roster path or DefaultRoster.
func (s *Settings) RosterFile() string {
	if s == nil || s.Roster == "" {
		return DefaultRoster
	}
	return s.Roster
}

// Seed returns the configured seed; zero means seed from the clock.
func (s *Settings) Seed() uint64 {
	if s == nil {
		return 0
	}
	return s.Draw.Seed
}

// MaxAttempts returns the attempt cap; zero means unbounded.
func (s *Settings) MaxAttempts() int {
	if s == nil {
		return 0
	}
	return s.Draw.MaxAttempts
}

// Workers returns the number of parallel attempts, at least 1.
func (s *Settings) Workers() int {
	if s == nil || s.Draw.Workers < 1 {
		return 1
	}
	return s.Draw.Workers
}

// Level returns the configured log level, defaulting to "info".
func (s *Settings) Level() string {
	if s == nil || s.LogLevel == "" {
		return "info"
	}
	return s.LogLevel
}

// Reporters returns the configured output names, defaulting to console.
func (s *Settings) Reporters() []string {
	if s == nil || len(s.Outputs) == 0 {
		return []string{"console"}
	}
	return s.Outputs
}
