package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root bootstrap configuration for the doorpoint terminal.
//
// It only describes where things live on disk and how the process itself
// behaves. Runtime device settings (broker address, face thresholds, relay
// time, ...) are owned by the confstore package and are remotely mutable;
// the bootstrap file is not.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig contains terminal-local paths and commands.
type DeviceConfig struct {
	// Name is a human-readable terminal name for logs.
	Name string `yaml:"name"`

	// ConfigPath is the location of the mutable JSON device configuration.
	ConfigPath string `yaml:"config_path"`

	// UpgradeDir is where firmware artifacts are downloaded and verified.
	UpgradeDir string `yaml:"upgrade_dir"`

	// RebootCommand is executed (via the shell) to restart the terminal
	// after a successful firmware upgrade or a remote restart command.
	RebootCommand string `yaml:"reboot_command"`

	// TrackInterval is the face-track polling period in milliseconds.
	TrackInterval int `yaml:"track_interval"`

	// RelayCommand is executed (via the shell) to pulse the door relay;
	// the hold time in seconds is appended as the last argument.
	RelayCommand string `yaml:"relay_command"`

	// AudioCommand is executed (via the shell) to play an audio
	// resource; the resource name is appended as the last argument.
	AudioCommand string `yaml:"audio_command"`

	// RecognizerSocket is the unix socket the recognition engine
	// pushes match events to. Empty disables the tracking loop.
	RecognizerSocket string `yaml:"recognizer_socket"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TelemetryConfig contains InfluxDB access-event telemetry settings.
// Disabled by default; most deployments run without a time-series backend.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DOORPOINT_SECTION_KEY
// For example: DOORPOINT_DATABASE_PATH, DOORPOINT_TELEMETRY_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:             "doorpoint",
			ConfigPath:       "/data/config/config.json",
			UpgradeDir:       "/data/upgrade",
			RebootCommand:    "reboot",
			TrackInterval:    8,
			RelayCommand:     "/usr/libexec/doorpoint/relay",
			AudioCommand:     "aplay",
			RecognizerSocket: "/run/doorpoint/recognizer.sock",
		},
		Database: DatabaseConfig{
			Path:        "/data/db/access.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORPOINT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("DOORPOINT_DEVICE_CONFIG_PATH"); v != "" {
		cfg.Device.ConfigPath = v
	}
	if v := os.Getenv("DOORPOINT_DEVICE_UPGRADE_DIR"); v != "" {
		cfg.Device.UpgradeDir = v
	}

	// Database
	if v := os.Getenv("DOORPOINT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Telemetry
	if v := os.Getenv("DOORPOINT_TELEMETRY_URL"); v != "" {
		cfg.Telemetry.URL = v
	}
	if v := os.Getenv("DOORPOINT_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}

	// Logging
	if v := os.Getenv("DOORPOINT_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ConfigPath == "" {
		errs = append(errs, "device.config_path is required")
	}
	if c.Device.UpgradeDir == "" {
		errs = append(errs, "device.upgrade_dir is required")
	}
	if c.Device.TrackInterval < 1 {
		errs = append(errs, "device.track_interval must be at least 1ms")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}

	// Telemetry is optional, but if enabled it must be reachable.
	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry is enabled")
		}
		if c.Telemetry.Bucket == "" {
			errs = append(errs, "telemetry.bucket is required when telemetry is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetTrackInterval returns the face-track polling period as a Duration.
func (c *Config) GetTrackInterval() time.Duration {
	return time.Duration(c.Device.TrackInterval) * time.Millisecond
}

// GetBusyTimeout returns the SQLite busy timeout as a Duration.
func (c *Config) GetBusyTimeout() time.Duration {
	return time.Duration(c.Database.BusyTimeout) * time.Second
}
