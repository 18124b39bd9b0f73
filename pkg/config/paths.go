package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFileName is the config file looked up when no path is given.
const DefaultFileName = "redismux.yaml"

// ConfigDir returns the path to the redismux config directory (~/.redismux).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".redismux"), nil
}

// DefaultPath returns the path to the given config file.
// If name is already an absolute path, it returns it as-is. A file in the
// working directory wins over one in ~/.redismux.
func DefaultPath(name string) (string, error) {
	if name == "" {
		name = DefaultFileName
	}
	if filepath.IsAbs(name) {
		return name, nil
	}

	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
