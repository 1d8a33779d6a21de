package download

import (
	"fmt"
	"time"
)

// Download stage modes.
const (
	// ModeFull downloads, remuxes and scrapes metadata.
	ModeFull = "full"

	// ModeVerify only checks torrent client connectivity and emits a
	// placeholder artefact so downstream stages can run.
	ModeVerify = "verify"
)

// Config holds the download stage configuration.
type Config struct {
	// Enabled controls whether the download workers start.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Workers is the number of concurrent download workers.
	Workers int `mapstructure:"workers" validate:"omitempty,min=1" yaml:"workers"`

	// MaxRetries is the retry budget for download tasks.
	MaxRetries int `mapstructure:"max_retries" validate:"omitempty,min=1" yaml:"max_retries"`

	// Mode selects full processing or connectivity verification.
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=full verify" yaml:"mode"`

	// Dir is where remuxed output is written.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// Timeout bounds torrent completion per task.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Torrent configures the qBittorrent Web API client.
	Torrent TorrentConfig `mapstructure:"torrent" yaml:"torrent"`

	// Stash configures the optional metadata scraper. An empty URL
	// disables scraping.
	Stash StashConfig `mapstructure:"stash" yaml:"stash"`
}

// TorrentConfig holds qBittorrent Web API settings.
type TorrentConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// Timeout bounds individual API requests.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// PollInterval is the wait between completion polls.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// StashConfig holds Stash GraphQL API settings.
type StashConfig struct {
	URL     string        `mapstructure:"url" yaml:"url,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 10
	}
	if c.Mode == "" {
		c.Mode = ModeFull
	}
	if c.Dir == "" {
		c.Dir = "./data/downloads"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Minute
	}
	if c.Torrent.URL == "" {
		c.Torrent.URL = "http://localhost:8080"
	}
	if c.Torrent.Username == "" {
		c.Torrent.Username = "admin"
	}
	if c.Torrent.Password == "" {
		c.Torrent.Password = "adminadmin"
	}
	if c.Torrent.Timeout == 0 {
		c.Torrent.Timeout = 30 * time.Second
	}
	if c.Torrent.PollInterval == 0 {
		c.Torrent.PollInterval = 10 * time.Second
	}
	if c.Stash.Timeout == 0 {
		c.Stash.Timeout = 15 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Mode != ModeFull && c.Mode != ModeVerify {
		return fmt.Errorf("unsupported download mode: %s", c.Mode)
	}
	if c.Enabled && c.Torrent.URL == "" {
		return fmt.Errorf("torrent url is required")
	}
	return nil
}
