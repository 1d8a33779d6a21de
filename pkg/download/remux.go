package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// FFmpegRemuxer rewraps media into an MP4 container by stream copy, no
// re-encode.
type FFmpegRemuxer struct {
	bin     string
	timeout time.Duration
}

// NewFFmpegRemuxer creates a remuxer. Empty bin defaults to "ffmpeg" on
// PATH; zero timeout defaults to 10 minutes.
func NewFFmpegRemuxer(bin string, timeout time.Duration) *FFmpegRemuxer {
	if bin == "" {
		bin = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &FFmpegRemuxer{bin: bin, timeout: timeout}
}

// MakeOutputPath derives the remux target path from the input file name.
func MakeOutputPath(inputPath, outputDir string) string {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(outputDir, stem+".mp4")
}

// Remux converts input to a faststart MP4 at outputPath.
func (r *FFmpegRemuxer) Remux(ctx context.Context, inputPath, outputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.bin,
		"-y",
		"-i", inputPath,
		"-c", "copy",
		"-movflags", "+faststart",
		outputPath,
	)
	cmd.Stderr = &stderr

	logger.Info("remuxing", "input", inputPath, "output", outputPath)

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s", r.timeout)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("ffmpeg binary not found: %s", r.bin)
		}
		return fmt.Errorf("ffmpeg failed: %s", tailString(stderr.String(), 500))
	}

	out, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output file: %s", outputPath)
	}

	logger.Info("remux complete",
		"output", outputPath,
		"size_mb", fmt.Sprintf("%.1f", float64(out.Size())/(1<<20)))
	return nil
}

// tailString returns the last n bytes of s.
func tailString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
