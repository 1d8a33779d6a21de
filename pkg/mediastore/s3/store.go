// Package s3 implements S3 backed media storage.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Charliesj0129/pixAV/pkg/mediastore"
)

// Config holds the configuration for the S3 media store.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the AWS region.
	Region string

	// Endpoint is a custom S3 endpoint (e.g. for MinIO).
	Endpoint string

	// KeyPrefix is prepended to all object keys.
	KeyPrefix string

	// AccessKeyID and SecretAccessKey configure static credentials.
	// When empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle uses path-style addressing (required for MinIO).
	ForcePathStyle bool
}

// Store is an S3 backed media store.
type Store struct {
	client *s3.Client
	config Config

	mu     sync.RWMutex
	closed bool
}

// Compile-time interface check.
var _ mediastore.Store = (*Store)(nil)

// New creates an S3 media store with the given client.
func New(client *s3.Client, config Config) (*Store, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		config: config,
	}, nil
}

// NewFromConfig creates an S3 media store, building the client from the
// standard AWS config chain plus any overrides in config.
func NewFromConfig(ctx context.Context, config Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.ForcePathStyle
	})

	return New(client, config)
}

// fullKey returns the object key with the configured prefix applied.
func (s *Store) fullKey(key string) string {
	if s.config.KeyPrefix == "" {
		return key
	}
	return strings.TrimSuffix(s.config.KeyPrefix, "/") + "/" + strings.TrimPrefix(key, "/")
}

func (s *Store) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("media store is closed")
	}
	return nil
}

// Put stores the contents of r under key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	if err := s.checkClosed(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Open streams the object stored under key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, mediastore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return out.Body, nil
}

// Stat returns the size of the object stored under key.
func (s *Store) Stat(ctx context.Context, key string) (int64, error) {
	if err := s.checkClosed(); err != nil {
		return 0, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return 0, mediastore.ErrNotFound
		}
		return 0, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Local downloads the object to a temporary file and returns its path.
// The cleanup func removes the temporary file.
func (s *Store) Local(ctx context.Context, key string) (string, func(), error) {
	body, err := s.Open(ctx, key)
	if err != nil {
		return "", nil, err
	}
	defer body.Close()

	f, err := os.CreateTemp("", "pixav-media-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}

// Healthcheck verifies the bucket is accessible.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := s.checkClosed(); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.config.Bucket, err)
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// isNotFoundError checks if the error indicates a missing object.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "404")
}
