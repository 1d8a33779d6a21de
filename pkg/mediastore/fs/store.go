// Package fs implements filesystem backed media storage.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Charliesj0129/pixAV/pkg/mediastore"
)

// Config holds the configuration for the filesystem media store.
type Config struct {
	// Root is the directory relative keys are resolved under.
	Root string

	// DirMode is the permission mode for created directories.
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	FileMode os.FileMode
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(root string) Config {
	return Config{
		Root:     root,
		DirMode:  0755,
		FileMode: 0644,
	}
}

// Store is a filesystem backed media store.
//
// Download workers write artefacts with absolute paths, so absolute
// keys are used verbatim and only relative keys are resolved under the
// configured root.
type Store struct {
	config Config
}

// Compile-time interface check.
var _ mediastore.Store = (*Store)(nil)

// New creates a filesystem media store rooted at config.Root.
func New(config Config) (*Store, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("media store root is required")
	}
	if config.DirMode == 0 {
		config.DirMode = 0755
	}
	if config.FileMode == 0 {
		config.FileMode = 0644
	}

	if err := os.MkdirAll(config.Root, config.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create media store root: %w", err)
	}

	return &Store{config: config}, nil
}

// resolve maps a key to a filesystem path.
func (s *Store) resolve(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.config.Root, key)
}

// Put stores the contents of r under key. The write goes through a
// temporary file and a rename so readers never observe partial content.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	path := s.resolve(key)

	if err := os.MkdirAll(filepath.Dir(path), s.config.DirMode); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.config.FileMode)
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file for %s: %w", key, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize %s: %w", key, err)
	}

	return nil
}

// Open streams the object stored under key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mediastore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

// Stat returns the size of the object stored under key.
func (s *Store) Stat(ctx context.Context, key string) (int64, error) {
	info, err := os.Stat(s.resolve(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, mediastore.ErrNotFound
		}
		return 0, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	if info.IsDir() {
		return 0, mediastore.ErrNotFound
	}
	return info.Size(), nil
}

// Local returns the filesystem path of the object. The file already
// lives on local disk so cleanup is a no-op.
func (s *Store) Local(ctx context.Context, key string) (string, func(), error) {
	path := s.resolve(key)
	if _, err := s.Stat(ctx, key); err != nil {
		return "", nil, err
	}
	return path, func() {}, nil
}

// Healthcheck verifies the root directory is accessible.
func (s *Store) Healthcheck(ctx context.Context) error {
	info, err := os.Stat(s.config.Root)
	if err != nil {
		return fmt.Errorf("media store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media store root is not a directory: %s", s.config.Root)
	}
	return nil
}

// Close releases resources held by the store.
func (s *Store) Close() error {
	return nil
}
