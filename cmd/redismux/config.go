package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/redismux/pkg/config"
	"github.com/DeBrosOfficial/redismux/pkg/errors"
	"github.com/DeBrosOfficial/redismux/pkg/logging"
)

// loadConfig resolves the configuration: defaults, then the config file,
// then the environment, then flags set on the command line. An explicit
// --config must exist; the default locations are optional.
func loadConfig(cmd *cobra.Command, f *rootFlags, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.Default()

	path := f.configPath
	if path == "" {
		if p, err := config.DefaultPath(""); err == nil {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv(lookup)

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Store.URL = f.url
	}
	if flags.Changed("backend") {
		cfg.Store.Backend = strings.ToLower(f.backend)
	}
	if flags.Changed("password") {
		cfg.Store.Password = f.password
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if flags.Changed("embedded") {
		cfg.Store.Embedded = f.embedded
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// newLogger builds the process logger. One-shot commands only log errors
// unless --log-level asks for more, so their stdout stays clean.
func newLogger(cmd *cobra.Command, cfg *config.Config, quiet bool) (*logging.ColoredLogger, error) {
	level := cfg.Logging.Level
	if quiet && !cmd.Flags().Changed("log-level") {
		level = zap.ErrorLevel.String()
	}
	return logging.NewLogger(logging.Options{
		Level:        level,
		Format:       cfg.Logging.Format,
		OutputFile:   cfg.Logging.OutputFile,
		EnableColors: cfg.Logging.OutputFile == "",
	})
}
