package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Adapter  string     `yaml:"adapter"` // controller ID, e.g. "hci0"; empty uses the default
	Scan     ScanConfig `yaml:"scan"`
	Conn     ConnConfig `yaml:"connection"`
	MQTT     MQTTConfig `yaml:"mqtt"`
	LogLevel string     `yaml:"log_level"`
}

// ScanConfig holds discovery timing, in link-layer units of 0.625 ms.
type ScanConfig struct {
	Interval uint16 `yaml:"interval"`
	Window   uint16 `yaml:"window"`
	Active   bool   `yaml:"active"`
}

// ConnConfig holds connection timing. Intervals are in units of 1.25 ms,
// the supervision timeout in units of 10 ms.
type ConnConfig struct {
	MinInterval uint16 `yaml:"min_interval"`
	MaxInterval uint16 `yaml:"max_interval"`
	Latency     uint16 `yaml:"latency"`
	Timeout     uint16 `yaml:"timeout"`
}

// MQTTConfig holds the optional reading publisher settings. An empty broker
// disables publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ble-central")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values: a 60 ms scan
// interval with a 30 ms window and a 30-50 ms connection interval.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Interval: 0x0060,
			Window:   0x0030,
			Active:   false,
		},
		Conn: ConnConfig{
			MinInterval: 0x0018,
			MaxInterval: 0x0028,
			Latency:     0,
			Timeout:     0x01F4,
		},
		MQTT: MQTTConfig{
			Topic: "thermometer/reading",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Scan.Interval == 0 {
		return fmt.Errorf("scan.interval must be > 0")
	}
	if c.Scan.Window == 0 {
		return fmt.Errorf("scan.window must be > 0")
	}
	if c.Scan.Window > c.Scan.Interval {
		return fmt.Errorf("scan.window (%d) must not exceed scan.interval (%d)", c.Scan.Window, c.Scan.Interval)
	}

	if c.Conn.MinInterval == 0 || c.Conn.MaxInterval == 0 {
		return fmt.Errorf("connection intervals must be > 0")
	}
	if c.Conn.MinInterval > c.Conn.MaxInterval {
		return fmt.Errorf("connection.min_interval (%d) must not exceed connection.max_interval (%d)", c.Conn.MinInterval, c.Conn.MaxInterval)
	}
	if c.Conn.Timeout == 0 {
		return fmt.Errorf("connection.timeout must be > 0")
	}

	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic must not be empty when a broker is configured")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
