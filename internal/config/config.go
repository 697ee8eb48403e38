package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Username    string       `yaml:"username"`
	Password    string       `yaml:"password"`
	Output      string       `yaml:"output,omitempty"` // "json", "influxdb", or "mqtt"
	InfluxDB    InfluxConfig `yaml:"influxdb,omitempty"`
	MQTT        MQTTConfig   `yaml:"mqtt,omitempty"`
	DaysToFetch int          `yaml:"days_to_fetch,omitempty"` // Fetch window ending today (fallback: 30)
}

// InfluxConfig holds the InfluxDB v2 connection settings
type InfluxConfig struct {
	URL   string `yaml:"url"`   // e.g., "http://localhost:8086"
	Token string `yaml:"token"` // API token
	Org   string `yaml:"org"`
}

// MQTTConfig holds the MQTT broker settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetOutput returns the configured output mode, defaulting to json
func (c *Config) GetOutput() string {
	if c.Output == "" {
		return "json"
	}
	return c.Output
}

// GetDaysToFetch returns the number of days to fetch with a default of 30
func (c *Config) GetDaysToFetch() int {
	if c.DaysToFetch <= 0 {
		return 30
	}
	return c.DaysToFetch
}

// GetTopicPrefix returns the MQTT topic prefix, defaulting to electric_meter
func (c *MQTTConfig) GetTopicPrefix() string {
	if c.TopicPrefix == "" {
		return "electric_meter"
	}
	return c.TopicPrefix
}
