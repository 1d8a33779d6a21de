//go:build integration

package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Charliesj0129/pixAV/pkg/mediastore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mediastore-fs-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	s, err := New(DefaultConfig(tmpDir))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("New failed: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
		os.RemoveAll(tmpDir)
	})

	return s
}

func TestStore_PutAndOpen(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "videos/abc123/movie.mp4"
	data := "fake mp4 payload"

	if err := s.Put(ctx, key, strings.NewReader(data)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()

	read, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(read) != data {
		t.Errorf("Open returned %q, want %q", read, data)
	}

	// Verify file exists on disk and no temp file is left behind
	path := filepath.Join(s.config.Root, "videos", "abc123", "movie.mp4")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("media file not found at %s", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind at %s.tmp", path)
	}
}

func TestStore_OpenNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Open(ctx, "nonexistent.mp4")
	if !errors.Is(err, mediastore.ErrNotFound) {
		t.Errorf("Open returned error %v, want %v", err, mediastore.ErrNotFound)
	}
}

func TestStore_Stat(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	data := "twelve bytes"
	if err := s.Put(ctx, "clip.mp4", strings.NewReader(data)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	size, err := s.Stat(ctx, "clip.mp4")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("Stat returned %d, want %d", size, len(data))
	}

	if _, err := s.Stat(ctx, "missing.mp4"); !errors.Is(err, mediastore.ErrNotFound) {
		t.Errorf("Stat returned error %v, want %v", err, mediastore.ErrNotFound)
	}
}

func TestStore_AbsoluteKeyPassthrough(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// A file outside the store root, referenced by absolute path the way
	// download workers record local_path.
	outside, err := os.MkdirTemp("", "mediastore-fs-outside-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(outside) })

	absPath := filepath.Join(outside, "video.mp4")
	if err := os.WriteFile(absPath, []byte("abs"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	size, err := s.Stat(ctx, absPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if size != 3 {
		t.Errorf("Stat returned %d, want 3", size)
	}

	local, cleanup, err := s.Local(ctx, absPath)
	if err != nil {
		t.Fatalf("Local failed: %v", err)
	}
	defer cleanup()

	if local != absPath {
		t.Errorf("Local returned %q, want %q", local, absPath)
	}
}

func TestStore_Local(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Put(ctx, "staged.mp4", strings.NewReader("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path, cleanup, err := s.Local(ctx, "staged.mp4")
	if err != nil {
		t.Fatalf("Local failed: %v", err)
	}
	cleanup()

	// The fs backend serves files in place, so cleanup must not remove them.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file removed by cleanup: %v", err)
	}

	if _, _, err := s.Local(ctx, "missing.mp4"); !errors.Is(err, mediastore.ErrNotFound) {
		t.Errorf("Local returned error %v, want %v", err, mediastore.ErrNotFound)
	}
}

func TestStore_Healthcheck(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Healthcheck(ctx); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}

	os.RemoveAll(s.config.Root)
	if err := s.Healthcheck(ctx); err == nil {
		t.Error("Healthcheck succeeded after root removal")
	}
}
