// Package config provides configuration structures and loading logic for the
// units engine and its CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Compose   ComposeConfig   `yaml:"compose"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ComposeConfig holds the composition search defaults.
type ComposeConfig struct {
	MaxDepth        int  `yaml:"max_depth"`
	IncludePrefixed bool `yaml:"include_prefixed"`
}

// CatalogConfig selects the unit tables to load.
type CatalogConfig struct {
	File    string `yaml:"file"`
	Builtin *bool  `yaml:"builtin,omitempty"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`

	// SampleRatio is the fraction of root spans kept. Zero keeps all.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Limits on the composition search depth.
const (
	MinMaxDepth     = 1
	MaxMaxDepth     = 8
	DefaultMaxDepth = 2
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Compose: ComposeConfig{
			MaxDepth: DefaultMaxDepth,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "unitsctl",
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("UNITS_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("UNITS_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	if val := os.Getenv("UNITS_CATALOG_FILE"); val != "" {
		cfg.Catalog.File = val
	}

	if val := os.Getenv("UNITS_MAX_DEPTH"); val != "" {
		depth, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("UNITS_MAX_DEPTH: %w", err)
		}
		cfg.Compose.MaxDepth = depth
	}

	if val := os.Getenv("UNITS_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("UNITS_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	return nil
}

// UseBuiltin reports whether the embedded catalog should be loaded. It
// defaults to true when no catalog file is configured.
func (c *CatalogConfig) UseBuiltin() bool {
	if c.Builtin != nil {
		return *c.Builtin
	}
	return c.File == ""
}

// Validate performs validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	if err := c.Compose.Validate(); err != nil {
		return fmt.Errorf("compose configuration: %w", err)
	}

	if err := c.Catalog.Validate(); err != nil {
		return fmt.Errorf("catalog configuration: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry configuration: %w", err)
	}

	return nil
}

// Validate performs validation of logging configuration.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}
	if strings.TrimSpace(c.Format) == "" {
		c.Format = "text"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}

	format := strings.TrimSpace(strings.ToLower(c.Format))
	switch format {
	case "text", "json":
		c.Format = format
	default:
		return fmt.Errorf("invalid log format %q, supported formats: text, json", c.Format)
	}
	return nil
}

// Validate performs validation of the composition defaults.
func (c *ComposeConfig) Validate() error {
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxDepth < MinMaxDepth || c.MaxDepth > MaxMaxDepth {
		return fmt.Errorf("max_depth %d out of range [%d, %d]", c.MaxDepth, MinMaxDepth, MaxMaxDepth)
	}
	return nil
}

// Validate ensures at least one unit table is selected.
func (c *CatalogConfig) Validate() error {
	c.File = strings.TrimSpace(c.File)
	if c.File == "" && !c.UseBuiltin() {
		return fmt.Errorf("no catalog source: set catalog.file or enable catalog.builtin")
	}
	return nil
}

// Validate performs validation of telemetry configuration.
func (c *TelemetryConfig) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = "unitsctl"
	}
	if strings.Contains(c.OTLPEndpoint, " ") {
		return fmt.Errorf("invalid otlp_endpoint %q", c.OTLPEndpoint)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio %v out of range [0, 1]", c.SampleRatio)
	}
	return nil
}
