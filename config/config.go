// Package config provides localchat configuration: built-in defaults, an
// optional YAML file and environment overrides, applied in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// DefaultSystemPrompt is sent to the model when none is configured.
const DefaultSystemPrompt = "You are a helpful and friendly assistant. Keep responses conversational and concise."

// Config holds all application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Model   ModelConfig   `yaml:"model"`
	Log     LogConfig     `yaml:"log"`
	Display DisplayConfig `yaml:"display"`
}

// StoreConfig selects where conversations are kept.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

// ModelConfig configures the model text source.
type ModelConfig struct {
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
	APIKey       string `yaml:"api_key"`
}

// LogConfig controls the diagnostic logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DisplayConfig controls terminal output.
type DisplayConfig struct {
	Glamour    bool   `yaml:"glamour"`
	Transcript string `yaml:"transcript"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:  BackendSQLite,
			Path:     ".localchat/history.db",
			Capacity: 20,
		},
		Model: ModelConfig{
			Name:         "gemini-2.5-flash",
			SystemPrompt: DefaultSystemPrompt,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Display: DisplayConfig{
			Glamour: true,
		},
	}
}

// Load builds the configuration. path names a YAML file; when empty,
// LOCALCHAT_CONFIG is consulted. A missing file at the LOCALCHAT_CONFIG
// location is not an error, a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("LOCALCHAT_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFile merges a YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.Store.Backend = getEnv("LOCALCHAT_STORE_BACKEND", c.Store.Backend)
	c.Store.Path = getEnv("LOCALCHAT_STORE_PATH", c.Store.Path)
	c.Store.Capacity = getEnvInt("LOCALCHAT_CAPACITY", c.Store.Capacity)
	c.Model.Name = getEnv("LOCALCHAT_MODEL", c.Model.Name)
	c.Model.APIKey = getEnv("GEMINI_API_KEY", c.Model.APIKey)
	c.Log.Level = getEnv("LOCALCHAT_LOG_LEVEL", c.Log.Level)
	c.Display.Glamour = getEnvBool("LOCALCHAT_GLAMOUR", c.Display.Glamour)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path cannot be empty for the %s backend", c.Store.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.Capacity <= 0 {
		return fmt.Errorf("store.capacity must be > 0")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name cannot be empty")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
