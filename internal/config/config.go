// Package config handles configuration and credential management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	// DefaultHost is the default remote packaging service.
	DefaultHost = "https://packager.sb3pack.dev"
	// DefaultOutputFormat is the default output format.
	DefaultOutputFormat = "table"
)

// Environment overrides.
const (
	EnvHost   = "SB3PACK_HOST"
	EnvAPIKey = "SB3PACK_API_KEY"
)

// Config represents the CLI configuration.
type Config struct {
	DefaultHost  string `json:"default_host"`
	OutputFormat string `json:"output_format"`
	// RuntimeURL overrides the player runtime for settings that do not set one.
	RuntimeURL string `json:"runtime_url,omitempty"`
}

func defaultConfig() *Config {
	return &Config{
		DefaultHost:  DefaultHost,
		OutputFormat: DefaultOutputFormat,
	}
}

// configDir returns the path to the ~/.sb3pack directory.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sb3pack"), nil
}

// ensureConfigDir creates the config directory if it doesn't exist.
func ensureConfigDir() error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// configPath returns the path to the config file.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadConfig loads the configuration from disk, creating defaults if necessary.
func LoadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing fields
	if cfg.DefaultHost == "" {
		cfg.DefaultHost = DefaultHost
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to disk.
func SaveConfig(cfg *Config) error {
	if err := ensureConfigDir(); err != nil {
		return err
	}

	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// update loads the config (or defaults), applies fn, and saves it.
func update(fn func(cfg *Config)) error {
	cfg, err := LoadConfig()
	if err != nil {
		cfg = defaultConfig()
	}
	fn(cfg)
	return SaveConfig(cfg)
}

// GetHost returns the remote host: SB3PACK_HOST, then config, then the default.
func GetHost() string {
	if h := os.Getenv(EnvHost); h != "" {
		return h
	}
	cfg, err := LoadConfig()
	if err != nil {
		return DefaultHost
	}
	return cfg.DefaultHost
}

// GetOutputFormat returns the output format from config.
func GetOutputFormat() string {
	cfg, err := LoadConfig()
	if err != nil {
		return DefaultOutputFormat
	}
	return cfg.OutputFormat
}

// GetRuntimeURL returns the configured runtime URL, or "".
func GetRuntimeURL() string {
	cfg, err := LoadConfig()
	if err != nil {
		return ""
	}
	return cfg.RuntimeURL
}

// SetHost updates the default host in config.
func SetHost(host string) error {
	return update(func(cfg *Config) { cfg.DefaultHost = host })
}

// SetOutputFormat updates the output format in config.
func SetOutputFormat(format string) error {
	return update(func(cfg *Config) { cfg.OutputFormat = format })
}

// SetRuntimeURL updates the runtime URL in config.
func SetRuntimeURL(u string) error {
	return update(func(cfg *Config) { cfg.RuntimeURL = u })
}
