package config

import (
	"context"
	"fmt"

	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/mediastore"
	mediafs "github.com/Charliesj0129/pixAV/pkg/mediastore/fs"
	medias3 "github.com/Charliesj0129/pixAV/pkg/mediastore/s3"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// CreateStore connects to the configured database and applies pending
// migrations. Roles that must not touch the schema should use
// store.Open directly.
func CreateStore(cfg store.Config) (*store.GORMStore, error) {
	return store.New(&cfg)
}

// CreateBroker connects to the configured Redis broker.
func CreateBroker(cfg broker.Config) (*broker.Client, error) {
	return broker.New(&cfg)
}

// CreateMediaStore creates a media store instance from configuration.
func CreateMediaStore(ctx context.Context, cfg mediastore.Config) (mediastore.Store, error) {
	switch cfg.Backend {
	case "fs", "":
		return createFSMediaStore(cfg.FS)
	case "s3":
		return createS3MediaStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown mediastore backend: %q", cfg.Backend)
	}
}

// createFSMediaStore creates a filesystem-backed media store.
func createFSMediaStore(cfg mediastore.FSConfig) (mediastore.Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("filesystem media store requires root to be set")
	}

	return mediafs.New(mediafs.DefaultConfig(cfg.Root))
}

// createS3MediaStore creates an S3-backed media store.
func createS3MediaStore(ctx context.Context, cfg mediastore.S3Config) (mediastore.Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 media store requires bucket to be set")
	}

	s3Cfg := medias3.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		KeyPrefix:       cfg.KeyPrefix,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		ForcePathStyle:  cfg.ForcePathStyle,
	}

	return medias3.NewFromConfig(ctx, s3Cfg)
}
