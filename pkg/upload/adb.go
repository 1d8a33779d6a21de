package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// ADB drives Android containers through the adb CLI. Commands address
// their device explicitly, so one ADB value is safe to share between
// concurrent sessions.
type ADB struct {
	bin     string
	timeout time.Duration
}

// NewADB creates an adb CLI wrapper. An empty bin falls back to "adb"
// on PATH.
func NewADB(bin string, timeout time.Duration) *ADB {
	if bin == "" {
		bin = "adb"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ADB{bin: bin, timeout: timeout}
}

// Connect attaches to the ADB daemon at host:port and returns the
// target to address subsequent commands with.
func (a *ADB) Connect(ctx context.Context, host string, port int) (string, error) {
	target := fmt.Sprintf("%s:%d", host, port)
	stdout, stderr, err := a.run(ctx, "connect", target)
	if err != nil {
		return "", fmt.Errorf("adb connect to %s failed: %w", target, err)
	}
	// adb exits 0 even when the daemon is unreachable.
	if strings.Contains(strings.ToLower(stdout), "cannot") {
		return "", fmt.Errorf("adb connect to %s failed: %s %s", target, stdout, stderr)
	}
	logger.Debug("adb connected", "target", target)
	return target, nil
}

// Push copies a local file into the device.
func (a *ADB) Push(ctx context.Context, target, local, remote string) error {
	_, stderr, err := a.run(ctx, "-s", target, "push", local, remote)
	if err != nil {
		return fmt.Errorf("adb push failed: %s: %w", stderr, err)
	}
	logger.Debug("adb push finished", "target", target, "local", local, "remote", remote)
	return nil
}

// Shell executes a shell command on the device and returns its stdout.
func (a *ADB) Shell(ctx context.Context, target, cmd string) (string, error) {
	stdout, stderr, err := a.run(ctx, "-s", target, "shell", cmd)
	if err != nil {
		return "", fmt.Errorf("adb shell failed: %s: %w", stderr, err)
	}
	return stdout, nil
}

func (a *ADB) run(ctx context.Context, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	errOut := strings.TrimSpace(stderr.String())

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, errOut, fmt.Errorf("adb command timed out after %s", a.timeout)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return out, errOut, fmt.Errorf("adb binary not found: %s", a.bin)
	}
	return out, errOut, err
}
