package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends
const (
	BackendRedis = "redis"
	BackendOlric = "olric"
)

// Config represents the main configuration for redismux
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	PubSub  PubSubConfig  `yaml:"pubsub"`
	Codec   CodecConfig   `yaml:"codec"`
	Logging LoggingConfig `yaml:"logging"`
	Gateway GatewayConfig `yaml:"gateway"`
}

// StoreConfig describes how to reach the key-value store
type StoreConfig struct {
	Backend  string        `yaml:"backend"`   // redis | olric
	URL      string        `yaml:"url"`       // redis://[:password@]host:port/db
	DB       int           `yaml:"db"`        // >= 0 overrides the db in URL
	Password string        `yaml:"password"`  // overrides the password in URL
	PoolSize int           `yaml:"pool_size"` // connections per pool
	Blocking bool          `yaml:"blocking"`  // wait for a free connection instead of failing
	Timeout  time.Duration `yaml:"timeout"`   // pool wait / dial timeout

	// Olric backend
	OlricServers           []string `yaml:"olric_servers"`            // cluster client addresses
	Embedded               bool     `yaml:"embedded"`                 // start an in-process olric node
	EmbeddedBindAddr       string   `yaml:"embedded_bind_addr"`       // default 127.0.0.1
	EmbeddedBindPort       int      `yaml:"embedded_bind_port"`       // default 3320
	EmbeddedMemberlistPort int      `yaml:"embedded_memberlist_port"` // default 3322
}

// PubSubConfig controls the subscription multiplexer
type PubSubConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Strict        bool          `yaml:"strict"`         // reader loop failures are fatal
	ShutdownGrace time.Duration `yaml:"shutdown_grace"` // how long shutdown waits for the reader loop
}

// CodecConfig controls value encoding for Set/Get
type CodecConfig struct {
	JSONify bool `yaml:"jsonify"` // encode values as JSON by default
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	OutputFile string `yaml:"output_file"` // Empty for stdout
}

// GatewayConfig contains the HTTP/WebSocket gateway configuration
type GatewayConfig struct {
	ListenAddr       string `yaml:"listen_addr"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:                BackendRedis,
			URL:                    "redis://localhost:6379/0",
			DB:                     -1,
			PoolSize:               10,
			Blocking:               true,
			Timeout:                20 * time.Second,
			EmbeddedBindAddr:       "127.0.0.1",
			EmbeddedBindPort:       3320,
			EmbeddedMemberlistPort: 3322,
		},
		PubSub: PubSubConfig{
			Enabled:       true,
			ShutdownGrace: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Gateway: GatewayConfig{
			ListenAddr:       ":6380",
			MetricsNamespace: "redismux",
		},
	}
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	if err := DecodeStrict(f, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment variables recognised by ApplyEnv
const (
	EnvURL      = "REDISMUX_URL"
	EnvBackend  = "REDISMUX_BACKEND"
	EnvPassword = "REDISMUX_PASSWORD"
	EnvEmbedded = "REDISMUX_EMBEDDED"
	EnvLogLevel = "REDISMUX_LOG_LEVEL"
)

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production and a map in tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get(EnvURL); ok {
		c.Store.URL = v
	}
	if v, ok := get(EnvBackend); ok {
		c.Store.Backend = strings.ToLower(v)
	}
	if v, ok := get(EnvPassword); ok {
		c.Store.Password = v
	}
	if v, ok := get(EnvEmbedded); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Store.Embedded = b
		}
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Logging.Level = v
	}
}
