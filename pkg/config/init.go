package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultConfigTemplate is the starter configuration written by
// `pixav config init`. Values mirror the built-in defaults; the enabled
// flags are switched on so a single-node quickstart runs the whole
// pipeline. Multi-node deployments share one file and disable the roles
// a node should not run.
const defaultConfigTemplate = `# PixAV Configuration File
#
# Environment variables override file values using the PIXAV_ prefix,
# e.g. PIXAV_LOGGING_LEVEL=DEBUG or PIXAV_BROKER_URL=redis://redis:6379/0.

logging:
  # Minimum level: DEBUG, INFO, WARN, ERROR
  level: "INFO"
  # Output format: text, json
  format: "text"
  # Destination: stdout, stderr, or a file path
  output: "stdout"

database:
  # sqlite for single-node, postgres when several workers share state
  type: sqlite
  sqlite:
    path: "pixav.db"
  # postgres:
  #   host: "localhost"
  #   port: 5432
  #   user: "pixav"
  #   password: "pixav"
  #   database: "pixav"
  #   sslmode: "disable"

broker:
  # Redis connection shared by queues, locks, the pause flag and caches
  url: "redis://localhost:6379/0"

queues:
  crawl: "pixav:crawl"
  download: "pixav:download"
  upload: "pixav:upload"
  verify: "pixav:verify"

orchestrator:
  enabled: true
  tick_interval: "30s"
  batch_size: 5
  # Tasks stuck in a transient state longer than this get failed
  orphan_max_age: "2h"
  # Share links older than this are marked expired
  freshness_window: "720h"
  # wait leaves upload tasks pending when no account is schedulable,
  # fail fails them immediately
  no_account_policy: "wait"
  backpressure:
    warn_threshold: 50
    critical_threshold: 100

scheduler:
  # How long a scheduled upload account stays reserved per task
  lease_duration: "5m"

download:
  enabled: true
  workers: 2
  max_retries: 10
  # full downloads and remuxes, verify only checks connectivity
  mode: "full"
  dir: "./data/downloads"
  timeout: "30m"
  torrent:
    url: "http://localhost:8080"
    username: "admin"
    password: "adminadmin"
  stash:
    # Leave empty to disable metadata scraping
    url: ""

upload:
  enabled: true
  max_concurrency: 2
  max_retries: 3
  # redroid drives the Android runtime, local emits synthetic share URLs
  # for single-host pipeline verification
  mode: "redroid"
  local_share_scheme: "pixav-local://"
  lock_key: "pixav:upload:lock"
  lock_ttl: "10m"
  task_timeout: "20m"
  ready_timeout: "3m"
  verify_timeout: "5m"
  dlq_replay:
    max: 3
    backoff: ["60s", "5m", "15m"]
  redroid:
    image: "redroid/redroid:14.0.0-latest"
    adb_port_start: 5555

resolver:
  enabled: true
  host: "0.0.0.0"
  port: 8000
  concurrency: 3
  rate_limit_rpm: 60
  cache_ttl: "55m"
  fetch_timeout: "15s"

mediastore:
  # fs for single-node, s3 when download and upload run on different hosts
  backend: "fs"
  fs:
    root: "./data/downloads"
  # s3:
  #   bucket: "pixav-media"
  #   region: "us-east-1"
  #   endpoint: ""
  #   key_prefix: "staging/"
  #   force_path_style: false

system:
  pause_key: "pixav:pause"

metrics:
  enabled: false
  port: 9090

# telemetry:
#   enabled: false
#   endpoint: "localhost:4317"
#   insecure: true
#   sample_rate: 1.0
`

// InitConfig creates a starter configuration file at the default
// location and returns its path.
//
// Returns an error if the file already exists, unless force is set.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}
	return configPath, nil
}

// InitConfigToPath creates a starter configuration file at the given path.
//
// Returns an error if the file already exists, unless force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Starter files carry commented examples, so the template is written
	// verbatim instead of marshaling GetDefaultConfig.
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
