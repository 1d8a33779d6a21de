package upload

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// shareURLPattern matches share links the photos app prints to logcat
// once an item has synced.
var shareURLPattern = regexp.MustCompile(`https://photos\.app\.goo\.gl/\w+`)

const (
	photosLogcatFilter   = "GooglePhotos"
	shareURLPollInterval = 5 * time.Second
)

// PhotosVerifier watches container logcat for the share URL and checks
// the URL actually answers.
type PhotosVerifier struct {
	adb        *ADB
	httpClient *http.Client
}

// NewPhotosVerifier creates a verifier. httpTimeout bounds the share
// URL validation request.
func NewPhotosVerifier(adb *ADB, httpTimeout time.Duration) *PhotosVerifier {
	if httpTimeout == 0 {
		httpTimeout = 15 * time.Second
	}
	return &PhotosVerifier{
		adb:        adb,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// WaitForShareURL polls recent logcat output until a share URL shows
// up or the timeout elapses.
func (v *PhotosVerifier) WaitForShareURL(ctx context.Context, session *Session, timeout time.Duration) (string, error) {
	target, err := v.adb.Connect(ctx, session.ADBHost, session.ADBPort)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		out, err := v.adb.Shell(ctx, target, "logcat -d -t 100 -s "+photosLogcatFilter)
		if err != nil {
			logger.Debug("logcat poll error",
				"container_id", shortID(session.ContainerID, 12), "error", err)
		} else if url := shareURLPattern.FindString(out); url != "" {
			logger.Info("found share url",
				"container_id", shortID(session.ContainerID, 12), "share_url", url)
			return url, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(shareURLPollInterval):
		}
	}
	return "", fmt.Errorf("share url not found in container %s after %s",
		shortID(session.ContainerID, 12), timeout)
}

// ValidateShareURL answers whether the share URL responds with a
// non-error status. Transport failures count as invalid, not as
// errors, so a flaky share link lands in the retry path.
func (v *PhotosVerifier) ValidateShareURL(ctx context.Context, shareURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, shareURL, nil)
	if err != nil {
		return false, fmt.Errorf("invalid share url %q: %w", shareURL, err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logger.Warn("share url validation failed", "share_url", shareURL, "error", err)
		return false, nil
	}
	defer resp.Body.Close()

	valid := resp.StatusCode < 400
	logger.Info("share url validation",
		"share_url", shareURL,
		"status", resp.StatusCode,
		"valid", valid)
	return valid, nil
}
