package upload

import (
	"fmt"
	"time"
)

// Upload stage modes.
const (
	// ModeRedroid drives a containerized Android runtime over ADB.
	ModeRedroid = "redroid"

	// ModeLocal skips the runtime and emits a synthetic share URL. Meant
	// for single-host pipeline verification.
	ModeLocal = "local"
)

// DefaultLocalShareScheme prefixes synthetic share URLs in local mode.
const DefaultLocalShareScheme = "pixav-local://"

// Config holds the upload stage configuration.
type Config struct {
	// Enabled controls whether the upload workers start.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// MaxConcurrency is the number of cooperative upload consumers.
	// With a value of 1 the workers additionally serialize across the
	// whole cluster through the single-flight lock.
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"omitempty,min=1" yaml:"max_concurrency"`

	// MaxRetries is the retry budget for upload tasks.
	MaxRetries int `mapstructure:"max_retries" validate:"omitempty,min=1" yaml:"max_retries"`

	// Mode selects the Android runtime or the local short-circuit.
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=redroid local" yaml:"mode"`

	// LocalShareScheme prefixes synthetic share URLs in local mode.
	LocalShareScheme string `mapstructure:"local_share_scheme" yaml:"local_share_scheme"`

	// LockKey names the cluster-wide single-flight lock.
	LockKey string `mapstructure:"lock_key" yaml:"lock_key"`

	// LockTTL bounds how long a crashed holder can block the lock.
	LockTTL time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`

	// TaskTimeout bounds one whole upload attempt.
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`

	// ReadyTimeout bounds container startup.
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`

	// VerifyTimeout bounds the wait for the share URL.
	VerifyTimeout time.Duration `mapstructure:"verify_timeout" yaml:"verify_timeout"`

	// DLQReplay configures delayed replay of dead-lettered tasks.
	DLQReplay DLQReplayConfig `mapstructure:"dlq_replay" yaml:"dlq_replay"`

	// Redroid configures the Android container runtime.
	Redroid RedroidConfig `mapstructure:"redroid" yaml:"redroid"`
}

// DLQReplayConfig controls automatic re-queueing of dead letters.
type DLQReplayConfig struct {
	// Max is the replay budget per task. Zero disables replay.
	Max int `mapstructure:"max" validate:"omitempty,min=0" yaml:"max"`

	// Backoff holds the delay ladder; replay N waits Backoff[min(N, len-1)].
	Backoff []time.Duration `mapstructure:"backoff" yaml:"backoff"`
}

// RedroidConfig holds Android container runtime settings.
type RedroidConfig struct {
	// Image is the redroid container image.
	Image string `mapstructure:"image" yaml:"image"`

	// ADBHost is where mapped ADB ports are reachable.
	ADBHost string `mapstructure:"adb_host" yaml:"adb_host"`

	// ADBPortStart is the fallback ADB port when the runtime cannot
	// report the dynamically mapped one.
	ADBPortStart int `mapstructure:"adb_port_start" validate:"omitempty,min=1,max=65535" yaml:"adb_port_start"`

	// Network optionally attaches containers to a named network.
	Network string `mapstructure:"network" yaml:"network,omitempty"`

	// ADBBin is the adb binary to invoke.
	ADBBin string `mapstructure:"adb_bin" yaml:"adb_bin"`

	// ADBTimeout bounds individual adb commands.
	ADBTimeout time.Duration `mapstructure:"adb_timeout" yaml:"adb_timeout"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Mode == "" {
		c.Mode = ModeRedroid
	}
	if c.LocalShareScheme == "" {
		c.LocalShareScheme = DefaultLocalShareScheme
	}
	if c.LockKey == "" {
		c.LockKey = "pixav:upload:lock"
	}
	if c.LockTTL == 0 {
		c.LockTTL = 10 * time.Minute
	}
	if c.TaskTimeout == 0 {
		c.TaskTimeout = 20 * time.Minute
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = 3 * time.Minute
	}
	if c.VerifyTimeout == 0 {
		c.VerifyTimeout = 5 * time.Minute
	}
	if c.DLQReplay.Max == 0 {
		c.DLQReplay.Max = 3
	}
	if len(c.DLQReplay.Backoff) == 0 {
		c.DLQReplay.Backoff = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}
	}
	if c.Redroid.Image == "" {
		c.Redroid.Image = "redroid/redroid:14.0.0-latest"
	}
	if c.Redroid.ADBHost == "" {
		c.Redroid.ADBHost = "127.0.0.1"
	}
	if c.Redroid.ADBPortStart == 0 {
		c.Redroid.ADBPortStart = 5555
	}
	if c.Redroid.ADBBin == "" {
		c.Redroid.ADBBin = "adb"
	}
	if c.Redroid.ADBTimeout == 0 {
		c.Redroid.ADBTimeout = 30 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Mode != ModeRedroid && c.Mode != ModeLocal {
		return fmt.Errorf("unsupported upload mode: %s", c.Mode)
	}
	if c.Enabled && c.Mode == ModeRedroid && c.Redroid.Image == "" {
		return fmt.Errorf("redroid image is required")
	}
	if c.LockKey == "" {
		return fmt.Errorf("lock key is required")
	}
	return nil
}
