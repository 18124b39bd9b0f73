package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a single validation error with context.
type ValidationError struct {
	Path    string // e.g., "store.url"
	Message string // e.g., "unsupported scheme"
	Hint    string // e.g., "expected redis://, rediss:// or unix://"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate performs comprehensive validation of the entire config.
// It aggregates all errors and returns them, allowing the caller to print all issues at once.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStore()...)
	errs = append(errs, c.validatePubSub()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateStore() []error {
	var errs []error
	sc := c.Store

	switch sc.Backend {
	case BackendRedis:
		if sc.Embedded {
			errs = append(errs, ValidationError{
				Path:    "store.embedded",
				Message: "embedded mode requires the olric backend",
				Hint:    "set store.backend: olric",
			})
		}
		if sc.URL == "" {
			errs = append(errs, ValidationError{
				Path:    "store.url",
				Message: "must not be empty",
			})
		} else if u, err := url.Parse(sc.URL); err != nil {
			errs = append(errs, ValidationError{
				Path:    "store.url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		} else if u.Scheme != "redis" && u.Scheme != "rediss" && u.Scheme != "unix" {
			errs = append(errs, ValidationError{
				Path:    "store.url",
				Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
				Hint:    "expected redis://, rediss:// or unix://",
			})
		}
		if sc.DB > 15 {
			errs = append(errs, ValidationError{
				Path:    "store.db",
				Message: fmt.Sprintf("must be between 0 and 15, got %d", sc.DB),
				Hint:    "use -1 to keep the db from the URL",
			})
		}
	case BackendOlric:
		if !sc.Embedded && len(sc.OlricServers) == 0 {
			errs = append(errs, ValidationError{
				Path:    "store.olric_servers",
				Message: "must not be empty unless store.embedded is set",
			})
		}
		for i, addr := range sc.OlricServers {
			if !strings.Contains(addr, ":") {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("store.olric_servers[%d]", i),
					Message: fmt.Sprintf("invalid address %q", addr),
					Hint:    "expected host:port",
				})
			}
		}
		if sc.Embedded {
			errs = append(errs, validatePort("store.embedded_bind_port", sc.EmbeddedBindPort)...)
			errs = append(errs, validatePort("store.embedded_memberlist_port", sc.EmbeddedMemberlistPort)...)
			if sc.EmbeddedBindPort == sc.EmbeddedMemberlistPort {
				errs = append(errs, ValidationError{
					Path:    "store.embedded_memberlist_port",
					Message: "must differ from store.embedded_bind_port",
				})
			}
		}
	default:
		errs = append(errs, ValidationError{
			Path:    "store.backend",
			Message: fmt.Sprintf("unknown backend %q", sc.Backend),
			Hint:    "expected redis or olric",
		})
	}

	if sc.PoolSize < 1 {
		errs = append(errs, ValidationError{
			Path:    "store.pool_size",
			Message: fmt.Sprintf("must be >= 1, got %d", sc.PoolSize),
		})
	}
	if sc.Timeout < 0 {
		errs = append(errs, ValidationError{
			Path:    "store.timeout",
			Message: "must not be negative",
		})
	}

	return errs
}

func (c *Config) validatePubSub() []error {
	var errs []error
	if c.PubSub.ShutdownGrace < 0 {
		errs = append(errs, ValidationError{
			Path:    "pubsub.shutdown_grace",
			Message: "must not be negative",
		})
	}
	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("invalid level %q", c.Logging.Level),
			Hint:    "expected debug, info, warn or error",
		})
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("invalid format %q", c.Logging.Format),
			Hint:    "expected console or json",
		})
	}
	return errs
}

func validatePort(path string, port int) []error {
	if port < 1 || port > 65535 {
		return []error{ValidationError{
			Path:    path,
			Message: fmt.Sprintf("port %d out of range", port),
		}}
	}
	return nil
}
