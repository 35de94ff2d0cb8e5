package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// getConfigDir resolves nomadd's config directory, preferring
// $XDG_CONFIG_HOME and falling back to ~/.config, mirroring the teacher's
// getConfigDir.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nomad")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nomad")
}

// GetConfigDir returns nomadd's configuration directory.
func GetConfigDir() string {
	return getConfigDir()
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "nomad.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// defaultConfig returns a Config with every default applied, suitable for
// marshaling into a starter nomad.yaml.
func defaultConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Database.SQLite.Path = "./data/nomad.db"
	cfg.FileStore.StagingRoot = "./data/staging"
	cfg.FileStore.PublicRoot = "./data/public"
	cfg.FileStore.TmpRoot = "./data/tmp"
	cfg.Search.IndexPath = "./data/search.bleve"
	cfg.HTTP.JWTSecret = "change-me-to-a-random-32-byte-secret"
	return cfg
}

const configHeader = "# NOMAD Configuration File\n" +
	"#\n" +
	"# Generated by `nomadd init`. Edit the values below, then start the\n" +
	"# daemon with `nomadd start --config " + "<this file>" + "`.\n\n"

// InitConfig writes a default nomad.yaml to the default config location,
// creating parent directories as needed, and returns the path written.
// It refuses to overwrite an existing file unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default nomad.yaml to path, creating parent
// directories as needed. It refuses to overwrite an existing file unless
// force is true.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory %q: %w", dir, err)
		}
	}

	body, err := yaml.Marshal(defaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	content := append([]byte(configHeader), body...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}
