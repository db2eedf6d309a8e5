package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the API client
type Config struct {
	// API endpoints and timeouts
	API APIConfig `yaml:"api" json:"api"`

	// Rate limiting configuration (consulted by the transport when enabled)
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Session settings persistence
	Settings SettingsConfig `yaml:"settings" json:"settings"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds vendor endpoint configuration
type APIConfig struct {
	Host       string        `yaml:"host" json:"host"`
	WebHost    string        `yaml:"web_host" json:"web_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	WebTimeout time.Duration `yaml:"web_timeout" json:"web_timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int  `yaml:"burst_size" json:"burst_size"`
}

// SettingsConfig holds session persistence configuration
type SettingsConfig struct {
	Path        string `yaml:"path" json:"path"`
	UseKeyring  bool   `yaml:"use_keyring" json:"use_keyring"`
	Passphrase  string `yaml:"passphrase" json:"passphrase"`
	AutoPersist bool   `yaml:"auto_persist" json:"auto_persist"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host:       "i.instagram.com",
			WebHost:    "www.instagram.com",
			Timeout:    15 * time.Second,
			WebTimeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Settings: SettingsConfig{
			Path:        "",
			UseKeyring:  true,
			AutoPersist: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// LoadFromEnv loads configuration overrides from environment variables.
// An optional .env file in the working directory is honored first.
func (c *Config) LoadFromEnv() error {
	// Ignore a missing .env file; explicit env vars still apply
	_ = godotenv.Load()

	if host := os.Getenv("IGCLIENT_API_HOST"); host != "" {
		c.API.Host = host
	}
	if host := os.Getenv("IGCLIENT_WEB_HOST"); host != "" {
		c.API.WebHost = host
	}
	if timeout := os.Getenv("IGCLIENT_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid IGCLIENT_TIMEOUT: %w", err)
		}
		c.API.Timeout = d
	}
	if path := os.Getenv("IGCLIENT_SETTINGS_PATH"); path != "" {
		c.Settings.Path = path
	}
	if pass := os.Getenv("IGCLIENT_SETTINGS_PASSPHRASE"); pass != "" {
		c.Settings.Passphrase = pass
	}
	if level := os.Getenv("IGCLIENT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if rpm := os.Getenv("IGCLIENT_REQUESTS_PER_MINUTE"); rpm != "" {
		n, err := strconv.Atoi(rpm)
		if err != nil {
			return fmt.Errorf("invalid IGCLIENT_REQUESTS_PER_MINUTE: %w", err)
		}
		c.RateLimit.RequestsPerMinute = n
		c.RateLimit.Enabled = true
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.API.Host == "" {
		return errors.New("api host must not be empty")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api timeout must be positive")
	}
	if c.API.WebTimeout <= 0 {
		return errors.New("web timeout must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("requests_per_minute must be positive when rate limiting is enabled")
	}
	return nil
}
