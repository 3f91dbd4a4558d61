package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// searchPaths returns the configuration file locations to try, in priority
// order: the current directory's config file, then the user's per-app
// config directory.
func searchPaths() []string {
	paths := []string{"claude-supervisor-config.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "claude-supervisor", "config.yaml"))
	}
	return paths
}

// Load searches the default locations for a configuration file and returns
// the first one found, parsed and defaulted. If none exist, it returns the
// built-in default configuration.
func Load() (*Config, error) {
	for _, p := range searchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return Default(), nil
}

// LoadFile loads configuration from an explicit path, applying environment
// variable expansion before parsing.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills in zero-value fields that must never be empty.
func applyDefaults(cfg *Config) {
	if cfg.Level == "" {
		cfg.Level = Default().Level
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = DefaultModel
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = DefaultMaxTokens
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "claude"
	}
	if len(cfg.Files.SensitivePaths) == 0 {
		cfg.Files.SensitivePaths = Default().Files.SensitivePaths
	}
}
