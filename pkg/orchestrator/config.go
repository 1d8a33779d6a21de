package orchestrator

import (
	"fmt"
	"time"
)

// Policies for upload tasks when no account is schedulable.
const (
	// NoAccountWait leaves the task pending for a later tick.
	NoAccountWait = "wait"

	// NoAccountFail fails the task immediately.
	NoAccountFail = "fail"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Enabled controls whether the tick loop starts.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// TickInterval is the pause between scheduling cycles.
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`

	// BatchSize caps how many pending tasks one tick promotes.
	BatchSize int `mapstructure:"batch_size" validate:"omitempty,min=1" yaml:"batch_size"`

	// OrphanMaxAge is how long a task may sit in a transient state
	// before GC fails it.
	OrphanMaxAge time.Duration `mapstructure:"orphan_max_age" yaml:"orphan_max_age"`

	// FreshnessWindow is how long an available video's share link is
	// trusted before the expiry sweep marks it expired.
	FreshnessWindow time.Duration `mapstructure:"freshness_window" yaml:"freshness_window"`

	// NoAccountPolicy decides what happens to upload tasks when no
	// account is schedulable.
	NoAccountPolicy string `mapstructure:"no_account_policy" validate:"omitempty,oneof=wait fail" yaml:"no_account_policy"`

	// LeaseDuration is how long a scheduled account stays reserved
	// before the lease lapses. Populated from the scheduler section of
	// the configuration file.
	LeaseDuration time.Duration `mapstructure:"-" yaml:"-"`

	// Backpressure sets the queue depth thresholds.
	Backpressure BackpressureConfig `mapstructure:"backpressure" yaml:"backpressure"`
}

// BackpressureConfig holds queue depth thresholds.
type BackpressureConfig struct {
	// WarnThreshold is the depth at which dispatch still proceeds but
	// gets logged.
	WarnThreshold int64 `mapstructure:"warn_threshold" validate:"omitempty,min=1" yaml:"warn_threshold"`

	// CriticalThreshold is the depth at which dispatch to the queue
	// stops.
	CriticalThreshold int64 `mapstructure:"critical_threshold" validate:"omitempty,min=1" yaml:"critical_threshold"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.TickInterval == 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 5
	}
	if c.OrphanMaxAge == 0 {
		c.OrphanMaxAge = 2 * time.Hour
	}
	if c.FreshnessWindow == 0 {
		c.FreshnessWindow = 720 * time.Hour
	}
	if c.NoAccountPolicy == "" {
		c.NoAccountPolicy = NoAccountWait
	}
	if c.LeaseDuration == 0 {
		c.LeaseDuration = 5 * time.Minute
	}
	if c.Backpressure.WarnThreshold == 0 {
		c.Backpressure.WarnThreshold = 50
	}
	if c.Backpressure.CriticalThreshold == 0 {
		c.Backpressure.CriticalThreshold = 100
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.NoAccountPolicy != NoAccountWait && c.NoAccountPolicy != NoAccountFail {
		return fmt.Errorf("unsupported no_account_policy: %s", c.NoAccountPolicy)
	}
	if c.Backpressure.WarnThreshold > c.Backpressure.CriticalThreshold {
		return fmt.Errorf("backpressure warn threshold %d exceeds critical threshold %d",
			c.Backpressure.WarnThreshold, c.Backpressure.CriticalThreshold)
	}
	return nil
}
