package resolver

import (
	"fmt"
	"time"

	"github.com/Charliesj0129/pixAV/internal/bytesize"
)

// Config holds the resolver HTTP service configuration.
type Config struct {
	// Enabled controls whether the resolver server starts.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Host is the listen address.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the listen port.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Concurrency bounds simultaneous share page fetches.
	Concurrency int `mapstructure:"concurrency" validate:"omitempty,min=1" yaml:"concurrency"`

	// RateLimitRPM is the per-client request budget per minute.
	RateLimitRPM int `mapstructure:"rate_limit_rpm" validate:"omitempty,min=1" yaml:"rate_limit_rpm"`

	// CacheTTL is how long resolved CDN URLs stay cached. Google CDN
	// links expire after roughly an hour, so the default stays under it.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// FetchTimeout bounds one share page fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`

	// MaxPageBytes bounds how much of a share page gets read.
	// Supports human-readable sizes: "8Mi", "512Ki".
	MaxPageBytes bytesize.ByteSize `mapstructure:"max_page_bytes" yaml:"max_page_bytes,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.Concurrency == 0 {
		c.Concurrency = 3
	}
	if c.RateLimitRPM == 0 {
		c.RateLimitRPM = 60
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 55 * time.Minute
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.MaxPageBytes == 0 {
		c.MaxPageBytes = 8 * bytesize.MiB
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid resolver port: %d", c.Port)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("resolver concurrency must be at least 1")
	}
	return nil
}
