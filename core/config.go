package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultTargetTimeout        = 5 * time.Second
	DefaultRoundTimesheetMinute = 5
	MaxConflictRetries          = 1
)

type NotificationConfig struct {
	TargetTimeout time.Duration `koanf:"target_timeout" mapstructure:"target_timeout"`
	// Targets maps an entity type to the ordered downstream target ids.
	Targets map[string][]string `koanf:"targets" mapstructure:"targets"`
}

type NormalizationConfig struct {
	// RoundTimesheetMinutes rounds clock punch times; 0 disables rounding.
	RoundTimesheetMinutes int `koanf:"round_timesheet_minutes" mapstructure:"round_timesheet_minutes"`
}

type PersistenceConfig struct {
	ConflictRetries int `koanf:"conflict_retries" mapstructure:"conflict_retries"`
}

type Config struct {
	ServiceName   string              `koanf:"service_name" mapstructure:"service_name"`
	Notification  NotificationConfig  `koanf:"notification" mapstructure:"notification"`
	Normalization NormalizationConfig `koanf:"normalization" mapstructure:"normalization"`
	Persistence   PersistenceConfig   `koanf:"persistence" mapstructure:"persistence"`

	// origin holds the scalar defaults a DefaultConfig copy started from, so
	// the runtime layer can tell an explicit zero from an unset field.
	origin *configOrigin
}

type configOrigin struct {
	serviceName     string
	targetTimeout   time.Duration
	roundMinutes    int
	conflictRetries int
}

// DefaultConfig returns the defaults. Fields changed on the returned value,
// including changes to zero, override loaded config when passed to
// NewService; a zero field of a Config literal is treated as unset.
func DefaultConfig() Config {
	cfg := Config{
		ServiceName: "hr-ingest",
		Notification: NotificationConfig{
			TargetTimeout: DefaultTargetTimeout,
			Targets:       map[string][]string{},
		},
		Normalization: NormalizationConfig{
			RoundTimesheetMinutes: DefaultRoundTimesheetMinute,
		},
		Persistence: PersistenceConfig{
			ConflictRetries: MaxConflictRetries,
		},
	}
	cfg.origin = &configOrigin{
		serviceName:     cfg.ServiceName,
		targetTimeout:   cfg.Notification.TargetTimeout,
		roundMinutes:    cfg.Normalization.RoundTimesheetMinutes,
		conflictRetries: cfg.Persistence.ConflictRetries,
	}
	return cfg
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Notification.TargetTimeout < 0 {
		return fmt.Errorf("core: notification.target_timeout must not be negative")
	}
	for entity, targets := range c.Notification.Targets {
		if !EntityType(strings.ToUpper(strings.TrimSpace(entity))).Valid() {
			return fmt.Errorf("core: notification.targets has unknown entity type %q", entity)
		}
		for _, target := range targets {
			if strings.TrimSpace(target) == "" {
				return fmt.Errorf("core: notification.targets[%s] contains an empty target id", entity)
			}
		}
	}
	if c.Normalization.RoundTimesheetMinutes < 0 || c.Normalization.RoundTimesheetMinutes > 60 {
		return fmt.Errorf("core: normalization.round_timesheet_minutes must be between 0 and 60")
	}
	if c.Persistence.ConflictRetries < 0 || c.Persistence.ConflictRetries > MaxConflictRetries {
		return fmt.Errorf("core: persistence.conflict_retries must be between 0 and %d", MaxConflictRetries)
	}
	return nil
}

// TargetsFor returns a copy of the configured targets for entity.
func (c Config) TargetsFor(entity EntityType) []string {
	for key, targets := range c.Notification.Targets {
		if EntityType(strings.ToUpper(strings.TrimSpace(key))) == entity {
			return copyStrings(targets)
		}
	}
	return []string{}
}

func (c Config) targetTimeout() time.Duration {
	if c.Notification.TargetTimeout <= 0 {
		return DefaultTargetTimeout
	}
	return c.Notification.TargetTimeout
}
