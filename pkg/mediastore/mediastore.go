// Package mediastore abstracts where staged media artefacts live between
// the download and upload stages. The default filesystem backend serves
// single-node deployments; the S3 backend lets download and upload
// workers run on different hosts.
package mediastore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a media object does not exist.
var ErrNotFound = errors.New("media object not found")

// Store is the staging storage for downloaded media artefacts.
//
// Keys are the values carried in a video's local_path column: the
// filesystem backend accepts absolute paths as-is and resolves relative
// keys under its root, the S3 backend treats them as object keys.
type Store interface {
	// Put stores the contents of r under key.
	Put(ctx context.Context, key string, r io.Reader) error

	// Open streams the object stored under key.
	// Returns ErrNotFound when the object does not exist.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat returns the object size in bytes.
	// Returns ErrNotFound when the object does not exist.
	Stat(ctx context.Context, key string) (int64, error)

	// Local materializes the object as a file on the local filesystem
	// and returns its path. The cleanup func releases any scratch space
	// and must be called once the path is no longer needed.
	Local(ctx context.Context, key string) (path string, cleanup func(), err error)

	// Healthcheck verifies the backing storage is accessible.
	Healthcheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Config selects and configures the media storage backend.
type Config struct {
	// Backend selects the storage implementation.
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=fs s3" yaml:"backend"`

	// FS configures the filesystem backend.
	FS FSConfig `mapstructure:"fs" yaml:"fs"`

	// S3 configures the S3 backend.
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// FSConfig configures the filesystem backend.
type FSConfig struct {
	// Root is the directory staged media is resolved under.
	Root string `mapstructure:"root" yaml:"root"`
}

// S3Config configures the S3 backend. Endpoint and the static
// credentials exist for S3-compatible services such as MinIO.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix       string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = "fs"
	}
	if c.Backend == "fs" && c.FS.Root == "" {
		c.FS.Root = "./data/downloads"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case "fs":
		if c.FS.Root == "" {
			return errors.New("mediastore fs root is required")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("mediastore s3 bucket is required")
		}
	default:
		return errors.New("unsupported mediastore backend: " + c.Backend)
	}
	return nil
}
