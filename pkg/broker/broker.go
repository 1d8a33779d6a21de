// Package broker wraps the Redis primitives the pipeline is built on:
// named FIFO queues, the cluster-wide upload mutex, the delayed-replay
// set, the pause gate, and the resolver's shared TTL cache.
//
// Every component takes a *Client so a single connection pool serves the
// whole process.
package broker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config contains broker connection configuration.
type Config struct {
	// URL is the Redis connection URL, e.g. "redis://localhost:6379/0".
	URL string `mapstructure:"url" validate:"required" yaml:"url"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = "redis://localhost:6379/0"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("broker url is required")
	}
	if _, err := redis.ParseURL(c.URL); err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}
	return nil
}

// QueuesConfig names the work queues the pipeline routes through.
// Dead-letter and replay key names derive from these via DLQName and
// ReplaySetName.
type QueuesConfig struct {
	Crawl    string `mapstructure:"crawl" validate:"required" yaml:"crawl"`
	Download string `mapstructure:"download" validate:"required" yaml:"download"`
	Upload   string `mapstructure:"upload" validate:"required" yaml:"upload"`
	Verify   string `mapstructure:"verify" validate:"required" yaml:"verify"`
}

// ApplyDefaults fills in missing queue names with default values.
func (c *QueuesConfig) ApplyDefaults() {
	if c.Crawl == "" {
		c.Crawl = "pixav:crawl"
	}
	if c.Download == "" {
		c.Download = "pixav:download"
	}
	if c.Upload == "" {
		c.Upload = "pixav:upload"
	}
	if c.Verify == "" {
		c.Verify = "pixav:verify"
	}
}

// DLQName returns the dead-letter queue name for a work queue.
func DLQName(queue string) string {
	return queue + ":dlq"
}

// ReplaySetName returns the delayed-replay set key for a work queue.
func ReplaySetName(queue string) string {
	return DLQName(queue) + ":replay"
}

// Client is a thin wrapper around the Redis connection shared by all
// broker primitives.
type Client struct {
	rdb *redis.Client
}

// New creates a broker client from the configuration. The connection is
// established lazily; use Healthcheck to verify reachability.
func New(config *Config) (*Client, error) {
	if config == nil {
		config = &Config{}
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid broker configuration: %w", err)
	}

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse broker url: %w", err)
	}

	return &Client{rdb: redis.NewClient(opts)}, nil
}

// Healthcheck verifies the broker connection is alive.
func (c *Client) Healthcheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("broker ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
