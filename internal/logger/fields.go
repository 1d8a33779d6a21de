package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so pipeline events
// can be aggregated and queried by task, video, account or queue.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// Pipeline identity
	KeyComponent = "component" // orchestrator, ingester, download, upload, resolver
	KeyStage     = "stage"     // Stage name in payloads and DLQ entries
	KeyTaskID    = "task_id"   // Task identifier
	KeyVideoID   = "video_id"  // Video identifier
	KeyAccountID = "account_id"
	KeyInfoHash  = "info_hash"

	// Queue & dispatch
	KeyQueue     = "queue" // Queue name
	KeyDepth     = "depth" // Queue depth at decision time
	KeyState     = "state" // Task state
	KeyVideoStat = "video_status"
	KeyBatch     = "batch" // Batch size processed

	// Retry & DLQ
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyRetries    = "retries"     // Current retry counter
	KeyMaxRetries = "max_retries" // Retry cap
	KeyReplays    = "dlq_replays" // Delayed-replay counter
	KeyReadyAt    = "ready_at"    // Scheduled replay time

	// I/O & artefacts
	KeyPath   = "path"   // Local file path
	KeySize   = "size"   // Size in bytes
	KeyURL    = "url"    // Share or CDN URL
	KeyMode   = "mode"   // Stage mode (full/verify, redroid/local)
	KeyMagnet = "magnet" // Magnet URI

	// Client identification (resolver)
	KeyClientIP  = "client_ip"
	KeyRequestID = "request_id"
	KeyStatus    = "status" // HTTP status code
	KeySource    = "source" // cache, database, local, resolved

	// Storage backends
	KeyStoreType = "store_type" // fs, s3
	KeyBucket    = "bucket"
	KeyKey       = "key"
	KeyRegion    = "region"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyCount      = "count"
	KeyInterval   = "interval"
)

// Field constructors for type safety.

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Component returns a slog.Attr naming the emitting component
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Stage returns a slog.Attr for the pipeline stage
func Stage(name string) slog.Attr {
	return slog.String(KeyStage, name)
}

// TaskID returns a slog.Attr for a task identifier
func TaskID(id string) slog.Attr {
	return slog.String(KeyTaskID, id)
}

// VideoID returns a slog.Attr for a video identifier
func VideoID(id string) slog.Attr {
	return slog.String(KeyVideoID, id)
}

// AccountID returns a slog.Attr for an account identifier
func AccountID(id string) slog.Attr {
	return slog.String(KeyAccountID, id)
}

// InfoHash returns a slog.Attr for a torrent info hash
func InfoHash(h string) slog.Attr {
	return slog.String(KeyInfoHash, h)
}

// Queue returns a slog.Attr for a queue name
func Queue(name string) slog.Attr {
	return slog.String(KeyQueue, name)
}

// Depth returns a slog.Attr for a queue depth
func Depth(d int64) slog.Attr {
	return slog.Int64(KeyDepth, d)
}

// State returns a slog.Attr for a task state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// VideoStatus returns a slog.Attr for a video status
func VideoStatus(s string) slog.Attr {
	return slog.String(KeyVideoStat, s)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Retries returns a slog.Attr pair-friendly retry counter
func Retries(n int) slog.Attr {
	return slog.Int(KeyRetries, n)
}

// MaxRetries returns a slog.Attr for the retry cap
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Replays returns a slog.Attr for the DLQ replay counter
func Replays(n int) slog.Attr {
	return slog.Int(KeyReplays, n)
}

// Path returns a slog.Attr for a local file path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Size returns a slog.Attr for a byte size
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// URL returns a slog.Attr for a share or CDN URL
func URL(u string) slog.Attr {
	return slog.String(KeyURL, u)
}

// Mode returns a slog.Attr for a stage mode
func Mode(m string) slog.Attr {
	return slog.String(KeyMode, m)
}

// ClientIP returns a slog.Attr for a client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Status returns a slog.Attr for an HTTP status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Source returns a slog.Attr for a resolution source
func Source(s string) slog.Attr {
	return slog.String(KeySource, s)
}

// StoreType returns a slog.Attr for a media store backend
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// Bucket returns a slog.Attr for a cloud bucket name
func Bucket(b string) slog.Attr {
	return slog.String(KeyBucket, b)
}

// Key returns a slog.Attr for an object key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// DurationMs returns a slog.Attr with elapsed milliseconds since start
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Err returns a slog.Attr for an error value
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Count returns a slog.Attr for a generic count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}
