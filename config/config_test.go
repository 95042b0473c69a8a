package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "feed", cfg.Store.Bucket)
	assert.Equal(t, ":8080", cfg.Gateway.BindAddress)
	assert.Equal(t, "/graphql", cfg.Gateway.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
}

func TestLoadFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"nats": {
			"url": "nats://nats.internal:4222",
			"reconnect_wait": "5s"
		},
		"store": {
			"bucket": "instagram",
			"timeout": "10s"
		},
		"gateway": {
			"bind_address": ":9090"
		},
		"log": {
			"level": "debug",
			"format": "json"
		}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://nats.internal:4222", cfg.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, "instagram", cfg.Store.Bucket)
	assert.Equal(t, ":9090", cfg.Gateway.BindAddress)
	assert.Equal(t, "debug", cfg.Log.Level)

	timeout, err := cfg.Store.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)

	// Fields absent from the file keep their defaults
	assert.Equal(t, "/graphql", cfg.Gateway.Path)
}

func TestLoadLayersOverride(t *testing.T) {
	base := writeConfigFile(t, `{"store": {"bucket": "base"}, "log": {"level": "warn"}}`)
	override := writeConfigFile(t, `{"store": {"bucket": "override"}}`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.Store.Bucket)
	// The earlier layer's setting survives
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INSTAGRAM_NATS_URL", "nats://envhost:4222")
	t.Setenv("INSTAGRAM_STORE_BUCKET", "envbucket")
	t.Setenv("INSTAGRAM_LOG_LEVEL", "ERROR")
	t.Setenv("INSTAGRAM_PLAYGROUND", "false")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "nats://envhost:4222", cfg.NATS.URL)
	assert.Equal(t, "envbucket", cfg.Store.Bucket)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.False(t, cfg.Gateway.EnablePlayground)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().LoadFile("/nonexistent/config.json")
	require.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing nats url", mutate: func(c *Config) { c.NATS.URL = "" }},
		{name: "missing bucket", mutate: func(c *Config) { c.Store.Bucket = "" }},
		{name: "bad store timeout", mutate: func(c *Config) { c.Store.TimeoutStr = "later" }},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "verbose" }},
		{name: "unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
		{name: "bad gateway path", mutate: func(c *Config) { c.Gateway.Path = "graphql" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewLoader().getDefaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStringRedactsCredentials(t *testing.T) {
	cfg := NewLoader().getDefaults()
	cfg.NATS.Password = "hunter2"
	cfg.NATS.Token = "s3cret"

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cret")
}
