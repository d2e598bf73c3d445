// Package config provides YAML-based configuration for the statement parser UI server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultExtractionURL is where the extraction service listens when run locally.
const DefaultExtractionURL = "http://127.0.0.1:5000"

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                 int      `yaml:"port"`
	BindAddress          string   `yaml:"bind_address"`
	EnableCORS           bool     `yaml:"enable_cors"`
	AllowOrigins         []string `yaml:"allow_origins"`
	ReadTimeout          int      `yaml:"read_timeout_seconds"`
	WriteTimeout         int      `yaml:"write_timeout_seconds"`
	IdleTimeout          int      `yaml:"idle_timeout_seconds"`
	BodyLimit            string   `yaml:"body_limit"`
	EnableRequestLogging bool     `yaml:"enable_request_logging"`
}

// ExtractionConfig points at the statement extraction service
type ExtractionConfig struct {
	BaseURL string `yaml:"base_url"`
	// TimeoutSeconds bounds one request. 0 means no client-side limit.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// StorageConfig contains settings for staged uploads
type StorageConfig struct {
	StagingDirectory       string `yaml:"staging_directory"`
	MaxAgeMinutes          int    `yaml:"max_age_minutes"`
	CleanupIntervalMinutes int    `yaml:"cleanup_interval_minutes"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:                 8089,
			BindAddress:          "127.0.0.1",
			EnableCORS:           true,
			AllowOrigins:         []string{"*"},
			ReadTimeout:          30,
			WriteTimeout:         0,
			IdleTimeout:          120,
			BodyLimit:            "50M",
			EnableRequestLogging: true,
		},
		Extraction: ExtractionConfig{
			BaseURL:        DefaultExtractionURL,
			TimeoutSeconds: 0,
		},
		Storage: StorageConfig{
			StagingDirectory:       "./data/staging",
			MaxAgeMinutes:          60,
			CleanupIntervalMinutes: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file, creating it with defaults
// when it does not exist. Variables from a .env file next to the config (or
// in the working directory) are loaded before environment overrides apply.
func LoadConfig(configPath string) (*AppConfig, error) {
	loadDotEnv(filepath.Dir(configPath))

	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// loadDotEnv loads the first .env file found. Variables already set in the
// environment win.
func loadDotEnv(configDir string) {
	for _, envFile := range []string{filepath.Join(configDir, ".env"), ".env"} {
		if err := godotenv.Load(envFile); err == nil {
			return
		}
	}
}

// Save saves the configuration to a YAML file
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Statement Parser configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Extraction.BaseURL) == "" {
		return fmt.Errorf("extraction base_url is required")
	}
	if c.Extraction.TimeoutSeconds < 0 {
		return fmt.Errorf("extraction timeout_seconds must not be negative")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Server.Port = p
	}

	if url := os.Getenv("EXTRACTION_URL"); url != "" {
		c.Extraction.BaseURL = url
	}

	// EXTRACTION_TIMEOUT accepts "45s" style durations or plain seconds
	if timeout := os.Getenv("EXTRACTION_TIMEOUT"); timeout != "" {
		secs, err := parseSeconds(timeout)
		if err != nil {
			return fmt.Errorf("invalid EXTRACTION_TIMEOUT %q: %w", timeout, err)
		}
		c.Extraction.TimeoutSeconds = secs
	}

	if dir := os.Getenv("STAGING_DIR"); dir != "" {
		c.Storage.StagingDirectory = dir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	return nil
}

func parseSeconds(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.StagingDirectory) {
		c.Storage.StagingDirectory = filepath.Join(configDir, c.Storage.StagingDirectory)
	}
}

// GetStagingDir returns the absolute staging directory path
func (c *AppConfig) GetStagingDir() string {
	return c.Storage.StagingDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// ExtractionTimeout returns the per-request timeout, 0 for none.
func (c *AppConfig) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds) * time.Second
}

// StagedFileMaxAge returns how long staged uploads are kept.
func (c *AppConfig) StagedFileMaxAge() time.Duration {
	return time.Duration(c.Storage.MaxAgeMinutes) * time.Minute
}

// CleanupInterval returns how often old staged uploads are removed.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Storage.CleanupIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.StagingDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
