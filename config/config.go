// Package config loads the application configuration from JSON files
// with environment variable overrides layered on top.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arnellebalane/instagram-graphql/gateway/graphql"
)

// EnvPrefix namespaces the environment variable overrides
const EnvPrefix = "INSTAGRAM"

// Config represents the complete application configuration
type Config struct {
	NATS    NATSConfig     `json:"nats"`
	Store   StoreConfig    `json:"store"`
	Gateway graphql.Config `json:"gateway"`
	Log     LogConfig      `json:"log"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URL           string        `json:"url,omitempty"`
	ClientName    string        `json:"client_name,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// UnmarshalJSON accepts reconnect_wait as either a duration string
// ("2s") or nanoseconds
func (n *NATSConfig) UnmarshalJSON(data []byte) error {
	type Alias NATSConfig
	aux := &struct {
		ReconnectWait any `json:"reconnect_wait,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(n),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch v := aux.ReconnectWait.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("nats.reconnect_wait: %w", err)
		}
		n.ReconnectWait = d
	case float64:
		n.ReconnectWait = time.Duration(v)
	}

	return nil
}

// StoreConfig defines the JetStream KV bucket settings
type StoreConfig struct {
	Bucket       string `json:"bucket"`
	TimeoutStr   string `json:"timeout,omitempty"`
	MaxValueSize int    `json:"max_value_size,omitempty"`
}

// Timeout returns the parsed store operation timeout
func (s *StoreConfig) Timeout() (time.Duration, error) {
	if s.TimeoutStr == "" {
		return 0, nil
	}
	return time.ParseDuration(s.TimeoutStr)
}

// LogConfig defines structured logging settings
type LogConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text or json
}

// Validate checks if the config is valid and normalizes derived fields
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if c.Store.Bucket == "" {
		return errors.New("store.bucket is required")
	}
	if _, err := c.Store.Timeout(); err != nil {
		return fmt.Errorf("store.timeout: %w", err)
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	c.Log.Format = strings.ToLower(c.Log.Format)
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}

	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	return nil
}

// String returns a JSON representation of the config with credentials
// redacted
func (c *Config) String() string {
	clone := *c
	if clone.NATS.Password != "" {
		clone.NATS.Password = "***"
	}
	if clone.NATS.Token != "" {
		clone.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(clone, "", "  ")
	return string(data)
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers    []string
	envPrefix string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: EnvPrefix,
	}
}

// AddLayer adds a configuration file layer. Later layers override
// earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges all configuration layers over the defaults, applies
// environment overrides, and validates the result
func (l *Loader) Load() (*Config, error) {
	cfg := l.getDefaults()

	for _, path := range l.layers {
		if err := l.loadLayer(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			ClientName:    "instagram-graphql",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Store: StoreConfig{
			Bucket: "feed",
		},
		Gateway: graphql.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// loadLayer decodes one JSON file over the accumulated config. Fields
// absent from the file keep their current values.
func (l *Loader) loadLayer(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_NATS_URL"); val != "" {
		cfg.NATS.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}
	if val := os.Getenv(l.envPrefix + "_STORE_BUCKET"); val != "" {
		cfg.Store.Bucket = val
	}
	if val := os.Getenv(l.envPrefix + "_BIND_ADDRESS"); val != "" {
		cfg.Gateway.BindAddress = val
	}
	if val := os.Getenv(l.envPrefix + "_GRAPHQL_PATH"); val != "" {
		cfg.Gateway.Path = val
	}
	if val := os.Getenv(l.envPrefix + "_PLAYGROUND"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			cfg.Gateway.EnablePlayground = enabled
		}
	}
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
}
