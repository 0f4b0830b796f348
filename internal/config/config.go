// Package config handles adotrack bootstrap configuration loading.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the tracker service and CLI.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// ServerConfig defines the hosting HTTP listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// StorageConfig defines where the settings database lives.
type StorageConfig struct {
	Database string `yaml:"database"`
}

// LoggingConfig defines log output and Sentry forwarding.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	SentryDSN string `yaml:"sentry_dsn"`
}

// HTTPConfig defines outbound HTTP behavior toward Azure DevOps.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Server: ServerConfig{
			Listen: "127.0.0.1:8315",
		},
		Storage: StorageConfig{
			Database: filepath.Join(homeDir, ".local/share/adotrack/adotrack.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads configuration from the default path, falling back to defaults
// when no file exists.
func Load() (*Config, error) {
	configPath := DefaultConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the configuration file path, honoring the
// ADOTRACK_CONFIG override.
func DefaultConfigPath() string {
	if path := os.Getenv("ADOTRACK_CONFIG"); path != "" {
		return path
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config/adotrack/config.yaml")
}
