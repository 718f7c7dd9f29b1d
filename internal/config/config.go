package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Library  LibraryConfig  `toml:"library"`
	Logging  LoggingConfig  `toml:"logging"`
	Live     LiveConfig     `toml:"live"`
	Client   ClientConfig   `toml:"client"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string `toml:"port"`
	Host         string `toml:"host"`
	EnableCORS   bool   `toml:"enable_cors"`
	ReadTimeout  int    `toml:"read_timeout_seconds"`
	WriteTimeout int    `toml:"write_timeout_seconds"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
}

// LibraryConfig contains local music library configuration
type LibraryConfig struct {
	Enabled          bool     `toml:"enabled"`
	Path             string   `toml:"path"`
	SupportedFormats []string `toml:"supported_formats"`
	WatchForChanges  bool     `toml:"watch_for_changes"`
	ScanOnStartup    bool     `toml:"scan_on_startup"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// LiveConfig controls change fan-out between server instances. An empty
// RedisURL keeps changes in process.
type LiveConfig struct {
	RedisURL string `toml:"redis_url"`
	Channel  string `toml:"channel"`
}

// ClientConfig is read by vsnctl
type ClientConfig struct {
	ServerURL      string `toml:"server_url"`
	RequestTimeout int    `toml:"request_timeout_seconds"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Host:         "0.0.0.0",
			EnableCORS:   true,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Database: DatabaseConfig{
			Path:           "./vsnplyr.db",
			MaxConnections: 10,
		},
		Library: LibraryConfig{
			Enabled:          false,
			Path:             "./music",
			SupportedFormats: []string{".flac", ".mp3", ".wav", ".m4a"},
			WatchForChanges:  true,
			ScanOnStartup:    true,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
		Live: LiveConfig{
			RedisURL: "",
			Channel:  "vsnplyr:changes",
		},
		Client: ClientConfig{
			ServerURL:      "http://localhost:8080",
			RequestTimeout: 10,
		},
	}
}

// LoadConfig loads configuration from a TOML file, then applies
// environment overrides
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Environment variables that override file settings.
const (
	EnvDBPath    = "VSNPLYR_DB_PATH"
	EnvPort      = "VSNPLYR_PORT"
	EnvRedisURL  = "VSNPLYR_REDIS_URL"
	EnvServerURL = "VSNPLYR_SERVER_URL"
	EnvLogLevel  = "VSNPLYR_LOG_LEVEL"
	EnvLibrary   = "VSNPLYR_LIBRARY_PATH"
	EnvMaxConns  = "VSNPLYR_DB_MAX_CONNECTIONS"
)

// ApplyEnv loads an optional .env file from the working directory and
// applies VSNPLYR_* overrides. Variables already set in the environment
// win over the .env file.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.Live.RedisURL = v
	}
	if v := os.Getenv(EnvServerURL); v != "" {
		c.Client.ServerURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLibrary); v != "" {
		c.Library.Path = v
		c.Library.Enabled = true
	}
	if v := os.Getenv(EnvMaxConns); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxConns, err)
		}
		c.Database.MaxConnections = n
	}
	return nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create or open file
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	header := `# vsnplyr Configuration
# Settings for the playlist server and the vsnctl client.
# Environment variables prefixed with VSNPLYR_ override selected values.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	// Encode configuration to TOML
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	// Validate database config
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	// Validate library config
	if c.Library.Enabled {
		if c.Library.Path == "" {
			return fmt.Errorf("library path cannot be empty")
		}
		if len(c.Library.SupportedFormats) == 0 {
			return fmt.Errorf("at least one supported audio format must be specified")
		}
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	if c.Live.RedisURL != "" && c.Live.Channel == "" {
		return fmt.Errorf("live channel cannot be empty when redis_url is set")
	}
	if c.Client.RequestTimeout < 0 {
		return fmt.Errorf("client request timeout must be positive")
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}
