// Package config provides configuration loading, validation, and management
// for the factory. It handles the YAML config file, defaults, and the
// encrypted secrets store.
package config

import (
	"fmt"
	"sync"
	"time"
)

// Default values applied when the config file omits a field.
const (
	DefaultTickIntervalSec = 2
	DefaultPollEveryNTicks = 15
	DefaultErrorBackoffSec = 5
	DefaultWorkDurationSec = 3

	DefaultListenAddr   = ":8080"
	DefaultDatabasePath = "factory.db"
	DefaultEventLogDir  = "logs"

	DefaultSystemLogRetentionDays  = 30
	DefaultPersonaLogRetentionDays = 7
)

// PersonaSpec describes one persona instance to create at startup.
type PersonaSpec struct {
	Type        string   `yaml:"type"`
	DisplayName string   `yaml:"display_name,omitempty"`
	ExtraSkills []string `yaml:"extra_skills,omitempty"`
}

// RetentionConfig holds the log retention windows in days. System logs and
// persona activity logs are cleaned up on separate schedules.
type RetentionConfig struct {
	SystemLogDays  int `yaml:"system_log_days"`
	PersonaLogDays int `yaml:"persona_log_days"`
}

// Config represents the main configuration for the factory.
type Config struct {
	TickIntervalSec int             `yaml:"tick_interval_sec"`
	PollEveryNTicks int             `yaml:"poll_every_n_ticks"`
	ErrorBackoffSec int             `yaml:"error_backoff_sec"`
	WorkDurationSec int             `yaml:"work_duration_sec"`
	Projects        []string        `yaml:"projects"`
	Personas        []PersonaSpec   `yaml:"personas"`
	DatabasePath    string          `yaml:"database_path"`
	EventLogDir     string          `yaml:"event_log_dir"`
	ListenAddr      string          `yaml:"listen_addr"`
	TrackerURL      string          `yaml:"tracker_url,omitempty"`
	PrometheusURL   string          `yaml:"prometheus_url,omitempty"`
	Retention       RetentionConfig `yaml:"retention"`
}

// Default returns a config populated with default values and an empty roster.
func Default() *Config {
	return &Config{
		TickIntervalSec: DefaultTickIntervalSec,
		PollEveryNTicks: DefaultPollEveryNTicks,
		ErrorBackoffSec: DefaultErrorBackoffSec,
		WorkDurationSec: DefaultWorkDurationSec,
		DatabasePath:    DefaultDatabasePath,
		EventLogDir:     DefaultEventLogDir,
		ListenAddr:      DefaultListenAddr,
		Retention: RetentionConfig{
			SystemLogDays:  DefaultSystemLogRetentionDays,
			PersonaLogDays: DefaultPersonaLogRetentionDays,
		},
	}
}

// TickInterval returns the dispatch loop cadence as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSec) * time.Second
}

// ErrorBackoff returns the pause applied after a failed loop iteration.
func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.ErrorBackoffSec) * time.Second
}

// WorkDuration returns the simulated execution time per work item.
func (c *Config) WorkDuration() time.Duration {
	return time.Duration(c.WorkDurationSec) * time.Second
}

// Validate checks the config for values the dispatcher cannot run with.
func (c *Config) Validate() error {
	if c.TickIntervalSec <= 0 {
		return fmt.Errorf("tick_interval_sec must be positive, got %d", c.TickIntervalSec)
	}
	if c.PollEveryNTicks <= 0 {
		return fmt.Errorf("poll_every_n_ticks must be positive, got %d", c.PollEveryNTicks)
	}
	if c.ErrorBackoffSec < 0 {
		return fmt.Errorf("error_backoff_sec must not be negative, got %d", c.ErrorBackoffSec)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.Retention.SystemLogDays <= 0 || c.Retention.PersonaLogDays <= 0 {
		return fmt.Errorf("retention windows must be positive, got system=%d persona=%d",
			c.Retention.SystemLogDays, c.Retention.PersonaLogDays)
	}
	for i, spec := range c.Personas {
		if spec.Type == "" {
			return fmt.Errorf("personas[%d]: type must not be empty", i)
		}
	}
	return nil
}

// Process-wide config set once at startup.
//
//nolint:gochecknoglobals // Intentional global state for loaded configuration
var (
	loadedConfig *Config
	configMux    sync.RWMutex
)

// SetConfig stores the loaded config for process-wide access.
func SetConfig(cfg *Config) {
	configMux.Lock()
	defer configMux.Unlock()
	loadedConfig = cfg
}

// GetConfig returns the loaded config, or defaults if none was loaded.
func GetConfig() *Config {
	configMux.RLock()
	defer configMux.RUnlock()
	if loadedConfig == nil {
		return Default()
	}
	return loadedConfig
}
