package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFilename is the config file the binary looks for when no
// -config flag is given.
const DefaultConfigFilename = "factory.yaml"

// Load reads a YAML config file, applies defaults for omitted fields, and
// validates the result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the config.
func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("FACTORY_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if dbPath := os.Getenv("FACTORY_DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if trackerURL := os.Getenv("FACTORY_TRACKER_URL"); trackerURL != "" {
		cfg.TrackerURL = trackerURL
	}
	if promURL := os.Getenv("FACTORY_PROMETHEUS_URL"); promURL != "" {
		cfg.PrometheusURL = promURL
	}
}
