package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds work-item-scoped logging context carried through a
// stage's processing of a single task.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Component string    // Originating component (orchestrator, download, upload, resolver)
	TaskID    string    // Task being processed
	VideoID   string    // Video the task belongs to
	AccountID string    // Upload account, when bound
	Queue     string    // Queue the payload came from
	ClientIP  string    // Client IP for resolver requests
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given component
func NewLogContext(component string) *LogContext {
	return &LogContext{
		Component: component,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithTask returns a copy with task and video identifiers set
func (lc *LogContext) WithTask(taskID, videoID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TaskID = taskID
		clone.VideoID = videoID
	}
	return clone
}

// WithAccount returns a copy with the account identifier set
func (lc *LogContext) WithAccount(accountID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.AccountID = accountID
	}
	return clone
}

// WithQueue returns a copy with the queue name set
func (lc *LogContext) WithQueue(queue string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Queue = queue
	}
	return clone
}

// WithClientIP returns a copy with the client IP set
func (lc *LogContext) WithClientIP(ip string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ClientIP = ip
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
