// Package upload implements the upload stage: it drives a downloaded
// video into a third-party photo service through a containerized
// Android runtime (or a local short-circuit) and captures the
// resulting share URL.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/pkg/mediastore"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
)

// ContainerManager owns the container lifecycle for upload attempts.
type ContainerManager interface {
	// Create starts a container for the task and returns its session.
	Create(ctx context.Context, taskID string) (*Session, error)

	// WaitReady blocks until the container can serve ADB or the timeout
	// elapses. It returns false on timeout and on terminal container
	// states.
	WaitReady(ctx context.Context, containerID string, timeout time.Duration) (bool, error)

	// Destroy removes the container.
	Destroy(ctx context.Context, containerID string) error
}

// FileUploader moves a file into the container and hands it to the
// photos app.
type FileUploader interface {
	PushFile(ctx context.Context, session *Session, localPath string) (string, error)
	TriggerUpload(ctx context.Context, session *Session, remotePath string) error
}

// ShareVerifier extracts and checks the share URL.
type ShareVerifier interface {
	WaitForShareURL(ctx context.Context, session *Session, timeout time.Duration) (string, error)
	ValidateShareURL(ctx context.Context, shareURL string) (bool, error)
}

// Injector is the upload stage contract the worker drives. Process
// returns the share URL for the task's video.
type Injector interface {
	Process(ctx context.Context, task *models.Task) (string, error)
}

// RedroidInjector runs create -> push -> trigger -> verify -> destroy
// against a real Android runtime.
type RedroidInjector struct {
	containers ContainerManager
	uploader   FileUploader
	verifier   ShareVerifier
	media      mediastore.Store

	readyTimeout  time.Duration
	verifyTimeout time.Duration
	taskTimeout   time.Duration
}

// RedroidInjectorConfig wires a RedroidInjector.
type RedroidInjectorConfig struct {
	Containers    ContainerManager
	Uploader      FileUploader
	Verifier      ShareVerifier
	Media         mediastore.Store
	ReadyTimeout  time.Duration
	VerifyTimeout time.Duration
	TaskTimeout   time.Duration
}

// NewRedroidInjector creates the container-backed injector.
func NewRedroidInjector(cfg RedroidInjectorConfig) *RedroidInjector {
	return &RedroidInjector{
		containers:    cfg.Containers,
		uploader:      cfg.Uploader,
		verifier:      cfg.Verifier,
		media:         cfg.Media,
		readyTimeout:  cfg.ReadyTimeout,
		verifyTimeout: cfg.VerifyTimeout,
		taskTimeout:   cfg.TaskTimeout,
	}
}

// Process runs one upload attempt under the task timeout. The
// container is torn down on every exit path, cancellation included.
func (s *RedroidInjector) Process(ctx context.Context, task *models.Task) (string, error) {
	if task.LocalPath == "" {
		return "", pipeline.Permanent(errors.New("local_path is required for upload tasks"))
	}

	taskCtx := ctx
	cancel := func() {}
	if s.taskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, s.taskTimeout)
	}
	defer cancel()

	shareURL, err := s.run(taskCtx, task)
	if err != nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("upload timed out after %s", s.taskTimeout)
	}
	return shareURL, err
}

func (s *RedroidInjector) run(ctx context.Context, task *models.Task) (string, error) {
	logger.Info("creating redroid container", "task_id", task.ID)
	session, err := s.containers.Create(ctx, task.ID)
	if err != nil {
		return "", err
	}
	defer s.teardown(session)

	logger.Info("waiting for container",
		"container_id", shortID(session.ContainerID, 12),
		"adb_host", session.ADBHost,
		"adb_port", session.ADBPort)
	ready, err := s.containers.WaitReady(ctx, session.ContainerID, s.readyTimeout)
	if err != nil {
		return "", err
	}
	if !ready {
		return "", fmt.Errorf("container %s did not become ready", shortID(session.ContainerID, 12))
	}

	localPath, cleanup, err := s.media.Local(ctx, task.LocalPath)
	if err != nil {
		return "", fmt.Errorf("failed to materialize %s: %w", task.LocalPath, err)
	}
	defer cleanup()

	remotePath, err := s.uploader.PushFile(ctx, session, localPath)
	if err != nil {
		return "", err
	}
	if err := s.uploader.TriggerUpload(ctx, session, remotePath); err != nil {
		return "", err
	}

	shareURL, err := s.verifier.WaitForShareURL(ctx, session, s.verifyTimeout)
	if err != nil {
		return "", err
	}
	valid, err := s.verifier.ValidateShareURL(ctx, shareURL)
	if err != nil {
		return "", err
	}
	if !valid {
		return "", fmt.Errorf("share url validation failed: %s", shareURL)
	}

	logger.Info("upload complete", "task_id", task.ID, "share_url", shareURL)
	return shareURL, nil
}

// teardown removes the container with its own deadline so a cancelled
// task still cleans up.
func (s *RedroidInjector) teardown(session *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.containers.Destroy(ctx, session.ContainerID); err != nil {
		logger.Error("failed to destroy container",
			"container_id", shortID(session.ContainerID, 12), "error", err)
	}
}

// LocalInjector marks uploads complete without a container runtime.
// It emits a synthetic share URL the resolver recognizes by scheme.
// Meant for single-host pipeline verification.
type LocalInjector struct {
	media  mediastore.Store
	scheme string
}

// NewLocalInjector creates the local short-circuit injector.
func NewLocalInjector(media mediastore.Store, scheme string) *LocalInjector {
	scheme = strings.TrimSpace(scheme)
	if scheme == "" {
		scheme = DefaultLocalShareScheme
	}
	return &LocalInjector{media: media, scheme: scheme}
}

// Process validates the local file and returns the synthetic share URL.
func (s *LocalInjector) Process(ctx context.Context, task *models.Task) (string, error) {
	if task.LocalPath == "" {
		return "", pipeline.Permanent(errors.New("local_path is required for upload tasks"))
	}
	if _, err := s.media.Stat(ctx, task.LocalPath); err != nil {
		if errors.Is(err, mediastore.ErrNotFound) {
			return "", pipeline.Permanent(fmt.Errorf("local_path does not exist: %s", task.LocalPath))
		}
		return "", fmt.Errorf("failed to stat %s: %w", task.LocalPath, err)
	}
	return s.scheme + task.VideoID, nil
}
