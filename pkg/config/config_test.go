package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())
	assert.True(t, cfg.PubSub.Enabled)
	assert.Equal(t, 5*time.Second, cfg.PubSub.ShutdownGrace)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redismux.yaml")
	yaml := `
store:
  backend: olric
  embedded: true
  embedded_bind_port: 4320
  embedded_memberlist_port: 4322
pubsub:
  strict: true
  shutdown_grace: 250ms
codec:
  jsonify: true
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendOlric, cfg.Store.Backend)
	assert.True(t, cfg.Store.Embedded)
	assert.Equal(t, 4320, cfg.Store.EmbeddedBindPort)
	assert.True(t, cfg.PubSub.Strict)
	assert.True(t, cfg.PubSub.Enabled, "unset fields keep their defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.PubSub.ShutdownGrace)
	assert.True(t, cfg.Codec.JSONify)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  hostname: x\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvURL:      "redis://cache:6380/2",
		EnvBackend:  "OLRIC",
		EnvEmbedded: "true",
		EnvLogLevel: "  ",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "redis://cache:6380/2", cfg.Store.URL)
	assert.Equal(t, BackendOlric, cfg.Store.Backend)
	assert.True(t, cfg.Store.Embedded)
	assert.Equal(t, "info", cfg.Logging.Level, "blank values are ignored")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "memcached" }, "store.backend"},
		{"bad scheme", func(c *Config) { c.Store.URL = "http://localhost" }, "store.url"},
		{"empty url", func(c *Config) { c.Store.URL = "" }, "store.url"},
		{"db out of range", func(c *Config) { c.Store.DB = 16 }, "store.db"},
		{"embedded redis", func(c *Config) { c.Store.Embedded = true }, "store.embedded"},
		{"olric without servers", func(c *Config) { c.Store.Backend = BackendOlric }, "store.olric_servers"},
		{"olric bad server", func(c *Config) {
			c.Store.Backend = BackendOlric
			c.Store.OlricServers = []string{"localhost"}
		}, "store.olric_servers[0]"},
		{"same embedded ports", func(c *Config) {
			c.Store.Backend = BackendOlric
			c.Store.Embedded = true
			c.Store.EmbeddedMemberlistPort = c.Store.EmbeddedBindPort
		}, "store.embedded_memberlist_port"},
		{"pool size", func(c *Config) { c.Store.PoolSize = 0 }, "store.pool_size"},
		{"negative grace", func(c *Config) { c.PubSub.ShutdownGrace = -time.Second }, "pubsub.shutdown_grace"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.NotEmpty(t, errs)

			found := false
			for _, err := range errs {
				if strings.HasPrefix(err.Error(), tt.wantPath+":") {
					found = true
				}
			}
			assert.True(t, found, "expected an error for %s, got %v", tt.wantPath, errs)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "x.yaml")
	got, err := DefaultPath(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	got, err = DefaultPath("")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, DefaultFileName))
}
