// Package config defines the probemap configuration model: YAML loading
// with defaults, struct-tag validation, and the cross-field checks the
// tags cannot express.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/probemap/probemap/internal/scanning"
)

// Config represents the complete probemap configuration.
type Config struct {
	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScanningConfig holds scan engine settings.
type ScanningConfig struct {
	// Default port specification used when none is given
	DefaultPorts string `yaml:"default_ports" json:"default_ports" validate:"required"`

	// Timeout for each connection attempt
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout" validate:"gt=0"`

	// Timeout for each identification probe
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout" validate:"gt=0"`

	// Cap on concurrent scanning workers
	MaxWorkers int `yaml:"max_workers" json:"max_workers" validate:"gt=0,lte=1024"`

	// Number of leading range ports eligible for identification
	IdentifyLimit int `yaml:"identify_limit" json:"identify_limit" validate:"gte=0"`

	// Enable service identification probes
	ServiceDetection bool `yaml:"service_detection" json:"service_detection"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output" validate:"required"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	engine := scanning.DefaultConfig()
	return &Config{
		Scanning: ScanningConfig{
			DefaultPorts:     "1-65535",
			ConnectTimeout:   engine.ConnectTimeout,
			ProbeTimeout:     engine.ProbeTimeout,
			MaxWorkers:       engine.MaxWorkers,
			IdentifyLimit:    engine.IdentifyLimit,
			ServiceDetection: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load loads configuration from a file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Cross-field checks the struct tags cannot express.
	if _, err := scanning.ParsePortRange(c.Scanning.DefaultPorts); err != nil {
		return fmt.Errorf("invalid default ports %q: %w", c.Scanning.DefaultPorts, err)
	}

	return nil
}

// EngineConfig maps the scanning section onto the scan engine's
// configuration struct.
func (c *Config) EngineConfig() scanning.Config {
	return scanning.Config{
		ConnectTimeout:   c.Scanning.ConnectTimeout,
		ProbeTimeout:     c.Scanning.ProbeTimeout,
		MaxWorkers:       c.Scanning.MaxWorkers,
		IdentifyLimit:    c.Scanning.IdentifyLimit,
		ServiceDetection: c.Scanning.ServiceDetection,
	}
}
