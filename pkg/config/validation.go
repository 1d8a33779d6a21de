package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for invalid values.
//
// Struct tag validation runs first (oneof for modes and policies, min
// and max for ports and thresholds), then the per-section relational
// checks that tags cannot express, such as backend-specific required
// fields and threshold ordering.
//
// Validate expects defaults to have been applied already; Load does
// both in order.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := cfg.Broker.Validate(); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if err := cfg.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := cfg.Download.Validate(); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if err := cfg.Upload.Validate(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if err := cfg.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	if err := cfg.MediaStore.Validate(); err != nil {
		return fmt.Errorf("mediastore: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry: endpoint is required when telemetry is enabled")
	}

	return nil
}
