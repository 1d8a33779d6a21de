package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false // disable colors for easier testing
	mu.Unlock()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}

	return buf, cleanup
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "debug message")
		assert.Contains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("InfoLevelFiltersDebug", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")

		Debug("debug message")
		Info("info message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.Contains(t, out, "info message")
	})

	t.Run("InvalidLevelIgnored", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetLevel("NOISE")

		Info("still here")
		assert.Contains(t, buf.String(), "still here")
	})
}

func TestStructuredFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("text")

	Info("task dispatched", KeyTaskID, "t-1", KeyQueue, "pixav:download", KeyDepth, int64(3))

	out := buf.String()
	assert.Contains(t, out, "task dispatched")
	assert.Contains(t, out, "task_id=t-1")
	assert.Contains(t, out, "queue=pixav:download")
	assert.Contains(t, out, "depth=3")
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")
	defer SetFormat("text")

	Info("upload complete", KeyVideoID, "v-9", KeySize, int64(1024))

	var record map[string]any
	line := strings.TrimSpace(buf.String())
	require.NoError(t, json.Unmarshal([]byte(line), &record))

	assert.Equal(t, "upload complete", record["msg"])
	assert.Equal(t, "v-9", record["video_id"])
	assert.Equal(t, float64(1024), record["size"])
}

func TestContextFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("text")

	lc := NewLogContext("upload").WithTask("t-42", "v-42").WithQueue("pixav:upload")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "processing payload")

	out := buf.String()
	assert.Contains(t, out, "component=upload")
	assert.Contains(t, out, "task_id=t-42")
	assert.Contains(t, out, "video_id=v-42")
	assert.Contains(t, out, "queue=pixav:upload")
}

func TestContextFieldsMissingContext(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")

	// Context without a LogContext should log the message unchanged.
	InfoCtx(context.Background(), "bare message")
	assert.Contains(t, buf.String(), "bare message")
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("download").WithTask("t-1", "v-1")
	clone := lc.WithAccount("a-1")

	assert.Empty(t, lc.AccountID)
	assert.Equal(t, "a-1", clone.AccountID)
	assert.Equal(t, "t-1", clone.TaskID)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
}

func TestWith(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("text")

	l := With(KeyComponent, "orchestrator")
	l.Info("tick complete", KeyCount, 5)

	out := buf.String()
	assert.Contains(t, out, "component=orchestrator")
	assert.Contains(t, out, "count=5")
}
