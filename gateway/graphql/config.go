package graphql

import (
	"fmt"
	"time"

	"github.com/arnellebalane/instagram-graphql/errors"
)

// Config holds configuration for the GraphQL gateway
type Config struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string `json:"bind_address"`

	// Path is the GraphQL endpoint path (default: "/graphql")
	Path string `json:"path"`

	// EnablePlayground enables GraphQL Playground UI (default: true)
	EnablePlayground bool `json:"enable_playground"`

	// EnableCORS enables CORS headers (default: true)
	EnableCORS bool `json:"enable_cors"`

	// CORSOrigins lists allowed CORS origins (default: ["*"])
	CORSOrigins []string `json:"cors_origins,omitempty"`

	// TimeoutStr is the per-request timeout (default: "30s")
	TimeoutStr string `json:"timeout,omitempty"`

	// timeout is the parsed duration (internal use)
	timeout time.Duration
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BindAddress:      ":8080",
		Path:             "/graphql",
		EnablePlayground: true,
		EnableCORS:       true,
		TimeoutStr:       "30s",
	}
}

// Validate checks the configuration and parses derived fields
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		c.BindAddress = ":8080"
	}
	if c.Path == "" {
		c.Path = "/graphql"
	}
	if c.Path[0] != '/' {
		return errors.WrapInvalid(
			fmt.Errorf("%w: path %q must start with /", errors.ErrInvalidConfig, c.Path),
			"Config", "Validate", "path validation")
	}

	if c.TimeoutStr == "" {
		c.TimeoutStr = "30s"
	}
	timeout, err := time.ParseDuration(c.TimeoutStr)
	if err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: timeout %q: %v", errors.ErrInvalidConfig, c.TimeoutStr, err),
			"Config", "Validate", "timeout validation")
	}
	if timeout <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: timeout must be positive", errors.ErrInvalidConfig),
			"Config", "Validate", "timeout validation")
	}
	c.timeout = timeout

	return nil
}

// Timeout returns the parsed per-request timeout
func (c *Config) Timeout() time.Duration {
	if c.timeout == 0 {
		return 30 * time.Second
	}
	return c.timeout
}
