package upload

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// remoteMediaDir is where pushed media lands inside the container so
// the photos app's media scanner picks it up.
const remoteMediaDir = "/sdcard/DCIM/Camera"

// ADBUploader pushes files into a container over ADB and nudges the
// media scanner so the photos app ingests them.
type ADBUploader struct {
	adb *ADB
}

// NewADBUploader creates an uploader on the given adb wrapper.
func NewADBUploader(adb *ADB) *ADBUploader {
	return &ADBUploader{adb: adb}
}

// PushFile copies localPath into the container's camera directory and
// returns the remote path.
func (u *ADBUploader) PushFile(ctx context.Context, session *Session, localPath string) (string, error) {
	remotePath := remoteMediaDir + "/" + filepath.Base(localPath)

	target, err := u.adb.Connect(ctx, session.ADBHost, session.ADBPort)
	if err != nil {
		return "", fmt.Errorf("failed to push %s to %s: %w", localPath, shortID(session.ContainerID, 12), err)
	}
	if err := u.adb.Push(ctx, target, localPath, remotePath); err != nil {
		return "", fmt.Errorf("failed to push %s to %s: %w", localPath, shortID(session.ContainerID, 12), err)
	}

	logger.Info("pushed file into container",
		"local", localPath,
		"remote", remotePath,
		"container_id", shortID(session.ContainerID, 12))
	return remotePath, nil
}

// TriggerUpload broadcasts a media scanner intent for the pushed file.
func (u *ADBUploader) TriggerUpload(ctx context.Context, session *Session, remotePath string) error {
	target, err := u.adb.Connect(ctx, session.ADBHost, session.ADBPort)
	if err != nil {
		return fmt.Errorf("failed to trigger upload in %s: %w", shortID(session.ContainerID, 12), err)
	}

	scanCmd := fmt.Sprintf(
		`am broadcast -a android.intent.action.MEDIA_SCANNER_SCAN_FILE -d "file://%s"`, remotePath)
	if _, err := u.adb.Shell(ctx, target, scanCmd); err != nil {
		return fmt.Errorf("failed to trigger upload in %s: %w", shortID(session.ContainerID, 12), err)
	}

	logger.Info("triggered media scan",
		"remote", remotePath,
		"container_id", shortID(session.ContainerID, 12))
	return nil
}
