package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// ConfigPath returns the path of the JSON config file.
func ConfigPath() (string, error) {
	if p := os.Getenv("VIVARIUM_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vivarium", "config.json"), nil
}

// Load builds the configuration: defaults, then the JSON file if present,
// then VIVARIUM_* environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err == nil {
		if data, err := os.ReadFile(path); err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	envconfig.Process("VIVARIUM_PATHS", &cfg.Paths)
	envconfig.Process("VIVARIUM_GATEWAY", &cfg.Gateway)
	envconfig.Process("VIVARIUM_HEARTBEAT", &cfg.Heartbeat)
	envconfig.Process("VIVARIUM_GENERATION", &cfg.Generation)
	envconfig.Process("VIVARIUM_EVENTS", &cfg.Events)

	if cfg.Paths.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve home: %w", err)
		}
		cfg.Paths.DataDir = filepath.Join(home, ".vivarium")
	}
	return cfg, nil
}

// Save writes the configuration back to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// DBPath returns the sqlite database location under the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.Paths.DataDir, "vivarium.db")
}
